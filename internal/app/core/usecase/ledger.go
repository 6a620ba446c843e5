package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

// TableAccounts 帳戶文件所在的表
const TableAccounts = "accounts"

// FieldAccountNumber 帳號，同一張表內不可重複
const FieldAccountNumber = "account_number"

// 帳戶文件欄位
const (
	fieldName      = "name"
	fieldPhone     = "phone"
	fieldBalance   = "balance"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// 核心使用的帳本語句，值一律透過參數綁定
const (
	stmtSelectBalance = "SELECT balance FROM " + TableAccounts + " WHERE account_number = ?"
	stmtUpdateBalance = "UPDATE " + TableAccounts + " SET balance = ?, updated_at = ? WHERE account_number = ?"
	stmtInsertAccount = "INSERT INTO " + TableAccounts + " VALUE ?"
	stmtDeleteAccount = "DELETE FROM " + TableAccounts + " WHERE account_number = ?"
	stmtSelectAccount = "SELECT * FROM " + TableAccounts + " WHERE account_number = ?"
	stmtListAccounts  = "SELECT * FROM " + TableAccounts
)

// lookupBalance 在目前交易中讀取帳戶餘額，只看第一筆
func lookupBalance(ctx context.Context, tx ledger.Tx, accountNumber string) (decimal.Decimal, error) {
	rows, err := tx.Execute(ctx, stmtSelectBalance, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}
	row, ok := rows.First()
	if !ok {
		return decimal.Zero, domain.AccountNotFoundError{AccountNumber: accountNumber}
	}
	return row.Decimal(fieldBalance)
}

// writeBalance 寫回新餘額並回傳文件 ID
func writeBalance(ctx context.Context, tx ledger.Tx, accountNumber string, balance decimal.Decimal, now time.Time) (string, error) {
	rows, err := tx.Execute(ctx, stmtUpdateBalance, balance, now, accountNumber)
	if err != nil {
		return "", err
	}
	return receiptOf(rows)
}

// receiptOf 取出寫入結果第一筆的 documentId
func receiptOf(rows ledger.Rows) (string, error) {
	row, ok := rows.First()
	if !ok {
		return "", &ledger.ExtractError{Field: ledger.FieldDocumentID, Reason: "empty write result"}
	}
	return row.DocumentID()
}

// accountDocument 帳戶轉成 INSERT 用的文件
func accountDocument(a domain.Account) map[string]any {
	return map[string]any{
		FieldAccountNumber: a.AccountNumber,
		fieldName:          a.Name,
		fieldPhone:         a.Phone,
		fieldBalance:       a.Balance.Round(domain.Scale),
		fieldCreatedAt:     a.CreatedAt,
		fieldUpdatedAt:     a.UpdatedAt,
	}
}

// accountFromRow 文件轉回帳戶
func accountFromRow(row ledger.Row) (domain.Account, error) {
	var (
		a   domain.Account
		err error
	)
	if a.AccountNumber, err = row.String(FieldAccountNumber); err != nil {
		return domain.Account{}, err
	}
	if a.Name, err = row.String(fieldName); err != nil {
		return domain.Account{}, err
	}
	if a.Phone, err = row.String(fieldPhone); err != nil {
		return domain.Account{}, err
	}
	if a.Balance, err = row.Decimal(fieldBalance); err != nil {
		return domain.Account{}, err
	}
	a.Balance = a.Balance.Round(domain.Scale)
	if a.CreatedAt, err = row.Time(fieldCreatedAt); err != nil {
		return domain.Account{}, err
	}
	if a.UpdatedAt, err = row.Time(fieldUpdatedAt); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
