package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
	"github.com/JoeShih716/go-doc-ledger/pkg/mysql"
)

// MySQL 錯誤碼
const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
	errDuplicateEntry  = 1062
)

// sqlAccount 對應資料庫的 accounts 表，只用於 AutoMigrate
type sqlAccount struct {
	DocumentID    string          `gorm:"column:document_id;type:char(36);primaryKey"`
	Version       int64           `gorm:"column:version;not null"`
	AccountNumber string          `gorm:"column:account_number;type:varchar(32);uniqueIndex;not null"`
	Name          string          `gorm:"column:name;type:varchar(255)"`
	Phone         string          `gorm:"column:phone;type:varchar(64)"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;type:datetime(6)"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;type:datetime(6)"`
}

func (*sqlAccount) TableName() string {
	return usecase.TableAccounts
}

// Store 以 MySQL 實作 ledger.Session
type Store struct {
	client *mysql.Client
	retry  ledger.RetryPolicy
	logger *zap.Logger
}

// NewStore 建立 Store
func NewStore(client *mysql.Client, retry ledger.RetryPolicy, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client: client,
		retry:  retry,
		logger: logger.Named("mysql"),
	}
}

// Migrate 建立 accounts 表
func (s *Store) Migrate(ctx context.Context) error {
	return s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{})
}

// RunTransaction 實作 ledger.Session
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.retry.Do(ctx, func(ctx context.Context) error {
		err := s.client.DB().WithContext(ctx).Transaction(func(db *gorm.DB) error {
			return fn(ctx, sqlstore.NewTx(&gormConn{db: db}, sqlstore.MySQL))
		})
		return s.classify(err)
	})
}

// classify 死結與鎖等待逾時視為衝突，其他 MySQL 錯誤包成 *ledger.Error
func (s *Store) classify(err error) error {
	var myErr *gomysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errDeadlock, errLockWaitTimeout:
		s.logger.Debug("transaction conflict", zap.Uint16("code", myErr.Number))
		return fmt.Errorf("%w: %v", ledger.ErrConflict, err)
	case errDuplicateEntry:
		return &ledger.Error{Op: "mysql", Err: fmt.Errorf("%w: %v", ledger.ErrDuplicateKey, err)}
	default:
		return &ledger.Error{Op: "mysql", Err: err}
	}
}

// gormConn 以 gorm 交易實作 sqlstore.Conn
type gormConn struct {
	db *gorm.DB
}

func (c *gormConn) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	var out []map[string]any
	if err := c.db.WithContext(ctx).Raw(query, args...).Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (c *gormConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res := c.db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

var _ ledger.Session = (*Store)(nil)
