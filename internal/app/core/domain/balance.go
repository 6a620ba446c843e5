package domain

import "github.com/shopspring/decimal"

// Scale 金額固定保留小數點後 2 位
const Scale int32 = 2

// ApplyDelta 計算異動後的餘額
//
// 參數:
//
//	current: 目前餘額
//	amount: 異動金額，呼叫端已確認為正數
//	kind: OperationCredit 加、OperationDebit 減 (轉帳拆成兩者)
//
// 回傳:
//
//	decimal.Decimal: 新餘額 (2 位小數)
//	bool: 新餘額是否 >= 0
func ApplyDelta(current, amount decimal.Decimal, kind OperationKind) (decimal.Decimal, bool) {
	switch kind {
	case OperationDebit:
		next := current.Sub(amount).Round(Scale)
		return next, !next.IsNegative()
	default:
		return current.Add(amount).Round(Scale), true
	}
}

// FormatAmount 以固定 2 位小數輸出金額
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
