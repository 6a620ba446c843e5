package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

// Coordinator 負責在單一帳本交易中完成 存入/扣款/轉帳
//
// 交易閉包可能因為 OCC 衝突被重跑，所以閉包內只讀寫帳本，
// log 與結果整理都在 RunTransaction 回傳之後才做。
type Coordinator struct {
	session ledger.Session
	logger  *zap.Logger
	now     func() time.Time
}

// NewCoordinator 建立 Coordinator，session 由呼叫端持有並共用
func NewCoordinator(session ledger.Session, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		session: session,
		logger:  logger.Named("coordinator"),
		now:     time.Now,
	}
}

// Execute 依 op.Kind 分派
func (c *Coordinator) Execute(ctx context.Context, op domain.MoneyOperation) (domain.Outcome, error) {
	if err := op.Validate(); err != nil {
		return domain.Outcome{}, err
	}
	switch op.Kind {
	case domain.OperationCredit:
		return c.Credit(ctx, op.Target, op.Amount)
	case domain.OperationDebit:
		return c.Debit(ctx, op.Target, op.Amount)
	default:
		return c.Transfer(ctx, op.Source, op.Target, op.Amount)
	}
}

// Credit 存入
func (c *Coordinator) Credit(ctx context.Context, account string, amount decimal.Decimal) (domain.Outcome, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Outcome{}, err
	}
	message := fmt.Sprintf("Successfully credited %s to %s", domain.FormatAmount(amount), account)
	outcome, err := ledger.Run(ctx, c.session, func(ctx context.Context, tx ledger.Tx) (domain.Outcome, error) {
		return c.post(ctx, tx, account, amount, domain.OperationCredit, message)
	})
	return c.settle(domain.OperationCredit, outcome, err, zap.String("account", account), zap.String("amount", amount.String()))
}

// Debit 扣款，餘額不足時回傳 OutcomeInsufficientBalance 且不寫入
func (c *Coordinator) Debit(ctx context.Context, account string, amount decimal.Decimal) (domain.Outcome, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Outcome{}, err
	}
	message := fmt.Sprintf("Successfully debited %s from %s", domain.FormatAmount(amount), account)
	outcome, err := ledger.Run(ctx, c.session, func(ctx context.Context, tx ledger.Tx) (domain.Outcome, error) {
		return c.post(ctx, tx, account, amount, domain.OperationDebit, message)
	})
	return c.settle(domain.OperationDebit, outcome, err, zap.String("account", account), zap.String("amount", amount.String()))
}

// Transfer 轉帳
//
// 順序固定為: 讀付款方 → 檢查餘額 → 讀收款方 → 寫付款方 → 寫收款方。
// 付款方餘額不足時完全不碰收款方。
func (c *Coordinator) Transfer(ctx context.Context, sender, recipient string, amount decimal.Decimal) (domain.Outcome, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Outcome{}, err
	}
	if err := domain.ValidateTransferParties(sender, recipient); err != nil {
		return domain.Outcome{}, err
	}
	message := fmt.Sprintf("Successfully transferred %s from %s to %s", domain.FormatAmount(amount), sender, recipient)

	outcome, err := ledger.Run(ctx, c.session, func(ctx context.Context, tx ledger.Tx) (domain.Outcome, error) {
		senderBalance, err := lookupBalance(ctx, tx, sender)
		if err != nil {
			return domain.Outcome{}, err
		}
		newSender, ok := domain.ApplyDelta(senderBalance, amount, domain.OperationDebit)
		if !ok {
			return domain.InsufficientBalance(), nil
		}

		recipientBalance, err := lookupBalance(ctx, tx, recipient)
		if err != nil {
			return domain.Outcome{}, err
		}
		newRecipient, _ := domain.ApplyDelta(recipientBalance, amount, domain.OperationCredit)

		now := c.now()
		if _, err := writeBalance(ctx, tx, sender, newSender, now); err != nil {
			return domain.Outcome{}, err
		}
		receipt, err := writeBalance(ctx, tx, recipient, newRecipient, now)
		if err != nil {
			return domain.Outcome{}, err
		}
		return domain.Succeeded(message, receipt), nil
	})
	return c.settle(domain.OperationTransfer, outcome, err,
		zap.String("sender", sender), zap.String("recipient", recipient), zap.String("amount", amount.String()))
}

// post 單一帳戶的 讀取→計算→寫入
func (c *Coordinator) post(ctx context.Context, tx ledger.Tx, account string, amount decimal.Decimal, kind domain.OperationKind, message string) (domain.Outcome, error) {
	balance, err := lookupBalance(ctx, tx, account)
	if err != nil {
		return domain.Outcome{}, err
	}
	next, ok := domain.ApplyDelta(balance, amount, kind)
	if !ok {
		return domain.InsufficientBalance(), nil
	}
	receipt, err := writeBalance(ctx, tx, account, next, c.now())
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Succeeded(message, receipt), nil
}

// settle 交易結束後整理結果並記錄 log
func (c *Coordinator) settle(kind domain.OperationKind, outcome domain.Outcome, err error, fields ...zap.Field) (domain.Outcome, error) {
	logger := c.logger.With(append(fields, zap.Stringer("operation", kind))...)

	var notFound domain.AccountNotFoundError
	if errors.As(err, &notFound) {
		outcome, err = domain.AccountNotFound(notFound.AccountNumber), nil
	}
	if err != nil {
		logger.Error("transaction failed", zap.Error(err))
		return domain.Outcome{}, err
	}

	switch outcome.Kind {
	case domain.OutcomeSucceeded:
		logger.Info(outcome.Message, zap.String("receipt", outcome.Receipt))
	default:
		logger.Warn("transaction rejected", zap.Stringer("outcome", outcome.Kind), zap.String("missing_account", outcome.Account))
	}
	return outcome, nil
}
