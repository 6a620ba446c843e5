package domain

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// AccountNumberLength 帳號固定 10 位數字
const AccountNumberLength = 10

// Account 帳戶文件
type Account struct {
	AccountNumber string
	Name          string
	Phone         string
	Balance       decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAccount 建立餘額為 0 的新帳戶
func NewAccount(accountNumber, name, phone string, now time.Time) Account {
	return Account{
		AccountNumber: accountNumber,
		Name:          name,
		Phone:         phone,
		Balance:       decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// GenerateAccountNumber 產生 10 位數字帳號
func GenerateAccountNumber() (string, error) {
	const digits = "0123456789"
	buf := make([]byte, AccountNumberLength)
	max := big.NewInt(int64(len(digits)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = digits[n.Int64()]
	}
	return string(buf), nil
}
