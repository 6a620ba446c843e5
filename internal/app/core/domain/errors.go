package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance in account")

	// ErrNoRowsAffected 刪除或更新沒有影響任何資料
	ErrNoRowsAffected = errors.New("no rows affected")
)

// AccountNotFoundError 找不到帳戶
type AccountNotFoundError struct {
	AccountNumber string
}

func (e AccountNotFoundError) Error() string {
	return "account not found: " + e.AccountNumber
}

// PayloadError 請求內容驗證失敗，一定發生在開啟交易之前
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string {
	return e.Message
}

// NewPayloadError 建立 PayloadError
func NewPayloadError(format string, args ...any) error {
	return &PayloadError{Message: fmt.Sprintf(format, args...)}
}

// AccountError 帳戶維護 (建立/刪除) 時呼叫端可以處理的錯誤
type AccountError struct {
	Message string
	Err     error
}

func (e *AccountError) Error() string {
	return e.Message
}

func (e *AccountError) Unwrap() error {
	return e.Err
}
