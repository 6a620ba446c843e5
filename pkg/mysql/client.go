package mysql

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quintans/faults"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的 MySQL 客戶端實例 (GORM)
//
// 參數:
//
//	ctx: 上下文，取消時停止重試
//	cfg: Config - MySQL 連線配置
//	log: 連線重試的 log
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gormConfig := &gorm.Config{
		// 帳本語句都在明確的交易中執行，不需要 GORM 再包一層
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel),
	}

	interval := cfg.ConnectBackoff
	if interval <= 0 {
		interval = 2 * time.Second
	}
	var policy backoff.BackOff = backoff.NewConstantBackOff(interval)
	policy = backoff.WithContext(backoff.WithMaxRetries(policy, cfg.ConnectRetries), ctx)

	var db *gorm.DB
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
		if err != nil {
			return err
		}
		rawDB, err := db.DB()
		if err != nil {
			return err
		}
		return rawDB.PingContext(ctx)
	}, policy, func(err error, next time.Duration) {
		log.Warn("failed to connect to mysql, retrying",
			zap.Int("attempt", attempt), zap.Duration("next", next), zap.Error(err))
	})
	if err != nil {
		return nil, faults.Errorf("failed to connect to mysql after %d attempts: %w", attempt, err)
	}

	// 取得底層 sql.DB 物件以設定連線池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, faults.Errorf("failed to get sql.db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Client{db: db}, nil
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error // 預設只記錄錯誤
	}

	return logger.Default.LogMode(logLevel)
}
