package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OperationKind 交易類型
type OperationKind uint8

const (
	// 存入
	OperationCredit OperationKind = 1
	// 扣款
	OperationDebit OperationKind = 2
	// 轉帳
	OperationTransfer OperationKind = 3
)

func (k OperationKind) String() string {
	switch k {
	case OperationCredit:
		return "CREDIT"
	case OperationDebit:
		return "DEBIT"
	case OperationTransfer:
		return "TRANSFER"
	default:
		return "UNKNOWN"
	}
}

// ParseOperationKind 解析外部傳入的交易類型 (CREDIT / DEBIT / TRANSFER)
func ParseOperationKind(s string) (OperationKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREDIT":
		return OperationCredit, nil
	case "DEBIT":
		return OperationDebit, nil
	case "TRANSFER":
		return OperationTransfer, nil
	default:
		return 0, NewPayloadError("unknown transaction_type %q", s)
	}
}

// MoneyOperation 一筆資金異動請求
type MoneyOperation struct {
	Kind   OperationKind
	Amount decimal.Decimal
	// Target 存入/扣款的帳戶，轉帳時為收款方
	Target string
	// Source 只有轉帳使用，付款方
	Source string
}

// Validate 在進入帳本之前檢查請求
func (op MoneyOperation) Validate() error {
	if err := ValidateAmount(op.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(op.Target) == "" {
		return NewPayloadError("recipient_account_number cannot be empty")
	}
	switch op.Kind {
	case OperationCredit, OperationDebit:
		return nil
	case OperationTransfer:
		return ValidateTransferParties(op.Source, op.Target)
	default:
		return NewPayloadError("unknown transaction type %d", op.Kind)
	}
}

// ValidateAmount 金額必須為正數，且最多兩位小數
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewPayloadError("Invalid transaction amount")
	}
	if !amount.Equal(amount.Round(Scale)) {
		return NewPayloadError("transaction amount supports at most %d decimal places", Scale)
	}
	return nil
}

// ValidateTransferParties 轉帳雙方都必須存在且不能相同
func ValidateTransferParties(sender, recipient string) error {
	if strings.TrimSpace(sender) == "" {
		return NewPayloadError("sender_account_number cannot be empty for transfer")
	}
	if sender == recipient {
		return NewPayloadError("sender and recipient must be different accounts")
	}
	return nil
}

// ParseAmount 解析外部傳入的金額字串
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, NewPayloadError("Invalid transaction amount")
	}
	return amount, nil
}

// NewMoneyOperation 由外部請求欄位組出已驗證的 MoneyOperation
//
// 參數:
//
//	kind: CREDIT / DEBIT / TRANSFER
//	amount: 金額字串
//	sender: 付款方，只有轉帳需要
//	recipient: 存入/扣款帳戶或收款方
func NewMoneyOperation(kind, amount, sender, recipient string) (MoneyOperation, error) {
	k, err := ParseOperationKind(kind)
	if err != nil {
		return MoneyOperation{}, err
	}
	a, err := ParseAmount(amount)
	if err != nil {
		return MoneyOperation{}, err
	}
	op := MoneyOperation{
		Kind:   k,
		Amount: a,
		Target: strings.TrimSpace(recipient),
		Source: strings.TrimSpace(sender),
	}
	if err := op.Validate(); err != nil {
		return MoneyOperation{}, err
	}
	return op, nil
}
