package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newStore(t *testing.T, retries uint64) *memory.Store {
	t.Helper()
	s, err := memory.NewStore(
		memory.WithUniqueKey(TableAccounts, FieldAccountNumber),
		memory.WithRetryPolicy(ledger.RetryPolicy{
			MaxRetries:      retries,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		}),
	)
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s ledger.Session, number, balance string) {
	t.Helper()
	a := domain.NewAccount(number, "Test "+number, "0912345678", time.Now().UTC())
	a.Balance = d(balance)
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.Execute(ctx, stmtInsertAccount, accountDocument(a))
		return err
	})
	require.NoError(t, err)
}

func balance(t *testing.T, s ledger.Session, number string) decimal.Decimal {
	t.Helper()
	got, err := ledger.Run(context.Background(), s, func(ctx context.Context, tx ledger.Tx) (decimal.Decimal, error) {
		return lookupBalance(ctx, tx, number)
	})
	require.NoError(t, err)
	return got
}

// recordingSession 紀錄每次交易執行過的語句
type recordingSession struct {
	inner ledger.Session

	mu         sync.Mutex
	statements []string
	runs       int
}

type recordingTx struct {
	tx ledger.Tx
	s  *recordingSession
}

func (r *recordingTx) Execute(ctx context.Context, statement string, params ...any) (ledger.Rows, error) {
	r.s.mu.Lock()
	r.s.statements = append(r.s.statements, statement)
	r.s.mu.Unlock()
	return r.tx.Execute(ctx, statement, params...)
}

func (r *recordingSession) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()
	return r.inner.RunTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &recordingTx{tx: tx, s: r})
	})
}

// flakySession 前幾次嘗試在閉包成功後回報衝突，模擬 OCC 重跑
type flakySession struct {
	inner    ledger.Session
	failures int
	attempts int
}

func (f *flakySession) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return f.inner.RunTransaction(ctx, func(ctx context.Context, tx ledger.Tx) error {
		f.attempts++
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if f.failures > 0 {
			f.failures--
			return ledger.ErrConflict
		}
		return nil
	})
}

func TestCoordinatorCreditAndDebitScenario(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "0")
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	out, err := c.Credit(ctx, "A", d("150.00"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "Successfully credited 150.00 to A", out.Message)
	assert.NotEmpty(t, out.Receipt)
	assert.True(t, d("150.00").Equal(balance(t, store, "A")))

	out, err = c.Debit(ctx, "A", d("200.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientBalance, out.Kind)
	assert.True(t, d("150.00").Equal(balance(t, store, "A")))

	out, err = c.Debit(ctx, "A", d("150.00"))
	require.NoError(t, err)
	assert.Equal(t, "Successfully debited 150.00 from A", out.Message)
	assert.True(t, balance(t, store, "A").IsZero())
}

func TestCoordinatorCreditDebitTransferSequence(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "100.00")
	seed(t, store, "B", "0.00")
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	assertBalances := func(step, a, b string) {
		t.Helper()
		assert.Equal(t, a, domain.FormatAmount(balance(t, store, "A")), step)
		assert.Equal(t, b, domain.FormatAmount(balance(t, store, "B")), step)
	}

	out, err := c.Credit(ctx, "A", d("50"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assertBalances("credit 50", "150.00", "0.00")

	out, err = c.Debit(ctx, "A", d("200"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientBalance, out.Kind)
	assertBalances("debit 200", "150.00", "0.00")

	out, err = c.Transfer(ctx, "A", "B", d("150.00"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "Successfully transferred 150.00 from A to B", out.Message)
	assertBalances("transfer 150.00", "0.00", "150.00")

	out, err = c.Transfer(ctx, "A", "B", d("0.01"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientBalance, out.Kind)
	assertBalances("transfer 0.01", "0.00", "150.00")
}

func TestCoordinatorTransferBoundary(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "25.50")
	seed(t, store, "B", "1.00")
	c := NewCoordinator(store, nil)
	ctx := context.Background()

	out, err := c.Transfer(ctx, "A", "B", d("25.51"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientBalance, out.Kind)
	assert.Equal(t, "25.50", domain.FormatAmount(balance(t, store, "A")))
	assert.Equal(t, "1.00", domain.FormatAmount(balance(t, store, "B")))

	out, err = c.Transfer(ctx, "A", "B", d("25.50"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "0.00", domain.FormatAmount(balance(t, store, "A")))
	assert.Equal(t, "26.50", domain.FormatAmount(balance(t, store, "B")))
}

func TestCoordinatorDebitBoundary(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "150.00")
	c := NewCoordinator(store, nil)

	out, err := c.Debit(context.Background(), "A", d("150.01"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientBalance, out.Kind)

	out, err = c.Debit(context.Background(), "A", d("150.00"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, "0.00", domain.FormatAmount(balance(t, store, "A")))
}

func TestCoordinatorAccountNotFound(t *testing.T) {
	store := newStore(t, 4)
	c := NewCoordinator(store, nil)

	out, err := c.Credit(context.Background(), "nonexistent", d("10.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAccountNotFound, out.Kind)
	assert.Equal(t, "nonexistent", out.Account)
	assert.Equal(t, 0, store.Len(TableAccounts))
}

func TestCoordinatorValidationSkipsLedger(t *testing.T) {
	rec := &recordingSession{inner: newStore(t, 4)}
	c := NewCoordinator(rec, nil)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5.00", "0.001"} {
		_, err := c.Debit(ctx, "A", d(amount))
		var payloadErr *domain.PayloadError
		assert.ErrorAs(t, err, &payloadErr, amount)
	}
	_, err := c.Transfer(ctx, "A", "A", d("1.00"))
	var payloadErr *domain.PayloadError
	assert.ErrorAs(t, err, &payloadErr)

	_, err = c.Execute(ctx, domain.MoneyOperation{Kind: domain.OperationCredit, Amount: d("1")})
	assert.ErrorAs(t, err, &payloadErr)

	assert.Zero(t, rec.runs)
	assert.Empty(t, rec.statements)
}

func TestCoordinatorTransfer(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "100.00")
	seed(t, store, "B", "5.00")
	c := NewCoordinator(store, nil)

	out, err := c.Transfer(context.Background(), "A", "B", d("40.50"))
	require.NoError(t, err)
	assert.Equal(t, "Successfully transferred 40.50 from A to B", out.Message)
	assert.True(t, d("59.50").Equal(balance(t, store, "A")))
	assert.True(t, d("45.50").Equal(balance(t, store, "B")))
}

func TestCoordinatorTransferInsufficientNeverReadsRecipient(t *testing.T) {
	rec := &recordingSession{inner: newStore(t, 4)}
	seed(t, rec.inner, "A", "10.00")
	c := NewCoordinator(rec, nil)

	// 收款方不存在，但付款方餘額不足應先被判定
	out, err := c.Transfer(context.Background(), "A", "nonexistent", d("20.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInsufficientBalance, out.Kind)
	assert.Equal(t, []string{stmtSelectBalance}, rec.statements)
	assert.True(t, d("10.00").Equal(balance(t, rec.inner, "A")))
}

func TestCoordinatorTransferMissingRecipientIsAtomic(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "100.00")
	c := NewCoordinator(store, nil)

	out, err := c.Transfer(context.Background(), "A", "nonexistent", d("20.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.AccountNotFound("nonexistent"), out)
	assert.True(t, d("100.00").Equal(balance(t, store, "A")))

	out, err = c.Transfer(context.Background(), "ghost", "A", d("20.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.AccountNotFound("ghost"), out)
}

func TestCoordinatorConflictAppliesOnce(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "100.00")
	flaky := &flakySession{inner: store, failures: 2}

	core, logs := observer.New(zapcore.InfoLevel)
	c := NewCoordinator(flaky, zap.New(core))

	out, err := c.Credit(context.Background(), "A", d("10.00"))
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, 3, flaky.attempts)
	assert.True(t, d("110.00").Equal(balance(t, store, "A")))

	// 只有最後提交的那次會留下 log
	assert.Equal(t, 1, logs.FilterMessage("Successfully credited 10.00 to A").Len())
}

func TestCoordinatorRetriesExhausted(t *testing.T) {
	store := newStore(t, 2)
	seed(t, store, "A", "100.00")
	flaky := &flakySession{inner: store, failures: 100}
	c := NewCoordinator(flaky, nil)

	_, err := c.Debit(context.Background(), "A", d("10.00"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrRetriesExhausted)
	var lerr *ledger.Error
	assert.ErrorAs(t, err, &lerr)
	assert.Equal(t, 3, flaky.attempts)
	assert.True(t, d("100.00").Equal(balance(t, store, "A")))
}

func TestCoordinatorConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := newStore(t, 200)
	seed(t, store, "A", "100.00")
	c := NewCoordinator(store, nil)

	const workers = 20
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Debit(context.Background(), "A", d("10.00"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch out.Kind {
			case domain.OutcomeSucceeded:
				succeeded++
			case domain.OutcomeInsufficientBalance:
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, insufficient)
	assert.True(t, balance(t, store, "A").IsZero())
}

func TestCoordinatorExecuteDispatch(t *testing.T) {
	store := newStore(t, 4)
	seed(t, store, "A", "10.00")
	seed(t, store, "B", "0")
	c := NewCoordinator(store, nil)

	out, err := c.Execute(context.Background(), domain.MoneyOperation{
		Kind: domain.OperationTransfer, Amount: d("2.5"), Source: "A", Target: "B",
	})
	require.NoError(t, err)
	assert.Equal(t, "Successfully transferred 2.50 from A to B", out.Message)
	assert.True(t, d("2.50").Equal(balance(t, store, "B")))
}
