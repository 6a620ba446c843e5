package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
)

// PostgreSQL SQLSTATE
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	document_id    TEXT PRIMARY KEY,
	version        BIGINT NOT NULL,
	account_number VARCHAR(32) NOT NULL UNIQUE,
	name           TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	balance        NUMERIC(20,2) NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
)`

// Store 以 PostgreSQL (REPEATABLE READ) 實作 ledger.Session
type Store struct {
	pool   *pgxpool.Pool
	retry  ledger.RetryPolicy
	logger *zap.Logger
}

// NewStore 建立 Store
func NewStore(pool *pgxpool.Pool, retry ledger.RetryPolicy, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool:   pool,
		retry:  retry,
		logger: logger.Named("postgres"),
	}
}

// Migrate 建立 accounts 表
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// RunTransaction 實作 ledger.Session
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
			return fn(ctx, sqlstore.NewTx(&pgxConn{tx: tx}, sqlstore.Postgres))
		})
		return s.classify(err)
	})
}

// classify 序列化失敗與死結視為衝突，其他資料庫錯誤包成 *ledger.Error
func (s *Store) classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		s.logger.Debug("transaction conflict", zap.String("code", pgErr.Code))
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	case codeUniqueViolation:
		return &ledger.Error{Op: "postgres", Err: fmt.Errorf("%w: %v", ledger.ErrDuplicateKey, err)}
	default:
		return &ledger.Error{Op: "postgres", Err: err}
	}
}

// pgxConn 以 pgx 交易實作 sqlstore.Conn
type pgxConn struct {
	tx pgx.Tx
}

func (c *pgxConn) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := c.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}

func (c *pgxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ ledger.Session = (*Store)(nil)
