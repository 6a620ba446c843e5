package domain

// OutcomeKind 交易結果種類
type OutcomeKind uint8

const (
	OutcomeSucceeded OutcomeKind = iota + 1
	OutcomeInsufficientBalance
	OutcomeAccountNotFound
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "SUCCEEDED"
	case OutcomeInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case OutcomeAccountNotFound:
		return "ACCOUNT_NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Outcome 是一次 Credit/Debit/Transfer 的業務結果，不會被保存。
// 基礎設施錯誤不屬於 Outcome，會以 error 回傳。
type Outcome struct {
	Kind OutcomeKind
	// Message 成功時的描述
	Message string
	// Receipt 成功時最後一筆寫入的文件 ID
	Receipt string
	// Account 找不到的帳戶
	Account string
}

func Succeeded(message, receipt string) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Message: message, Receipt: receipt}
}

func InsufficientBalance() Outcome {
	return Outcome{Kind: OutcomeInsufficientBalance}
}

func AccountNotFound(accountNumber string) Outcome {
	return Outcome{Kind: OutcomeAccountNotFound, Account: accountNumber}
}

// OK 是否成功
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSucceeded
}

// Err 把業務結果轉回錯誤，成功時為 nil
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeSucceeded:
		return nil
	case OutcomeInsufficientBalance:
		return ErrInsufficientBalance
	case OutcomeAccountNotFound:
		return AccountNotFoundError{AccountNumber: o.Account}
	default:
		return nil
	}
}
