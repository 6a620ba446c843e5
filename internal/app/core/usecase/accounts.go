package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

// 帳號重複時重新產生的次數上限
const maxNumberAttempts = 3

// AccountService 帳戶的 建立/查詢/列表/刪除
type AccountService struct {
	session   ledger.Session
	logger    *zap.Logger
	now       func() time.Time
	newNumber func() (string, error)
}

// NewAccountService 建立 AccountService
func NewAccountService(session ledger.Session, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		session:   session,
		logger:    logger.Named("accounts"),
		now:       func() time.Time { return time.Now().UTC() },
		newNumber: domain.GenerateAccountNumber,
	}
}

// Create 建立餘額為 0.00 的新帳戶
//
// 參數:
//
//	ctx: 上下文
//	name: 戶名
//	phone: 電話
//
// 回傳:
//
//	domain.Account: 新帳戶
//	error: 驗證失敗 (*domain.PayloadError) 或儲存層錯誤
func (s *AccountService) Create(ctx context.Context, name, phone string) (domain.Account, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" {
		return domain.Account{}, domain.NewPayloadError("Account name is required")
	}
	if phone == "" {
		return domain.Account{}, domain.NewPayloadError("Account phone is required")
	}
	for attempt := 1; ; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return domain.Account{}, fmt.Errorf("generate account number: %w", err)
		}
		account := domain.NewAccount(number, name, phone, s.now())

		docID, err := ledger.Run(ctx, s.session, func(ctx context.Context, tx ledger.Tx) (string, error) {
			rows, err := tx.Execute(ctx, stmtInsertAccount, accountDocument(account))
			if err != nil {
				return "", err
			}
			return receiptOf(rows)
		})
		if errors.Is(err, ledger.ErrDuplicateKey) && attempt < maxNumberAttempts {
			s.logger.Warn("account number taken, regenerating", zap.String("account", number), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.logger.Error("create account failed", zap.Error(err))
			return domain.Account{}, err
		}
		s.logger.Info("account created", zap.String("account", number), zap.String("document_id", docID))
		return account, nil
	}
}

// Find 依帳號查詢，找不到時回傳 domain.AccountNotFoundError
func (s *AccountService) Find(ctx context.Context, accountNumber string) (domain.Account, error) {
	return ledger.Run(ctx, s.session, func(ctx context.Context, tx ledger.Tx) (domain.Account, error) {
		rows, err := tx.Execute(ctx, stmtSelectAccount, accountNumber)
		if err != nil {
			return domain.Account{}, err
		}
		row, ok := rows.First()
		if !ok {
			return domain.Account{}, domain.AccountNotFoundError{AccountNumber: accountNumber}
		}
		return accountFromRow(row)
	})
}

// List 列出所有帳戶，無法解析的文件會被略過
func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := ledger.Run(ctx, s.session, func(ctx context.Context, tx ledger.Tx) (ledger.Rows, error) {
		return tx.Execute(ctx, stmtListAccounts)
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		a, err := accountFromRow(row)
		if err != nil {
			s.logger.Warn("skip malformed account document", zap.Error(err))
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// Delete 刪除帳戶並回傳被刪除的文件 ID
// 沒有任何文件被刪除時回傳 *domain.AccountError
func (s *AccountService) Delete(ctx context.Context, accountNumber string) (string, error) {
	docID, err := ledger.Run(ctx, s.session, func(ctx context.Context, tx ledger.Tx) (string, error) {
		rows, err := tx.Execute(ctx, stmtDeleteAccount, accountNumber)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "", domain.ErrNoRowsAffected
		}
		return receiptOf(rows)
	})
	if errors.Is(err, domain.ErrNoRowsAffected) {
		return "", &domain.AccountError{
			Message: "Unable to delete account: " + accountNumber,
			Err:     err,
		}
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("account deleted", zap.String("account", accountNumber), zap.String("document_id", docID))
	return docID, nil
}
