// Package config 載入服務設定：YAML 檔 → 環境變數 → 預設值
package config

import (
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/quintans/faults"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
	"github.com/JoeShih716/go-doc-ledger/pkg/logger"
	"github.com/JoeShih716/go-doc-ledger/pkg/mysql"
	"github.com/JoeShih716/go-doc-ledger/pkg/postgres"
)

// 帳本儲存實作
const (
	BackendMemory   = "memory"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
)

// Config 服務設定
type Config struct {
	Server   ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Ledger   LedgerConfig    `yaml:"ledger" envPrefix:"LEDGER_"`
	Session  SessionConfig   `yaml:"session" envPrefix:"SESSION_"`
	Log      logger.Config   `yaml:"log" envPrefix:"LOG_"`
	MySQL    mysql.Config    `yaml:"mysql" envPrefix:"MYSQL_"`
	Postgres postgres.Config `yaml:"postgres" envPrefix:"POSTGRES_"`
}

// ServerConfig 對外服務
type ServerConfig struct {
	// Port HTTP 埠號 (SERVER_PORT)
	Port            int           `yaml:"port" env:"PORT"`
	GRPCPort        int           `yaml:"grpc_port" env:"GRPC_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LedgerConfig 帳本
type LedgerConfig struct {
	// Name 帳本名稱 (LEDGER_NAME)，記憶體帳本的 WAL 檔名預設為 <name>.wal
	Name    string             `yaml:"name" env:"NAME"`
	Backend string             `yaml:"backend" env:"BACKEND"`
	WALPath string             `yaml:"wal_path" env:"WAL_PATH"`
	Migrate bool               `yaml:"migrate" env:"MIGRATE"`
	Retry   ledger.RetryPolicy `yaml:"retry"`
}

// SessionConfig 帳本連線
type SessionConfig struct {
	// PoolSize 連線池大小 (SESSION_POOL_SIZE)，資料庫設定沒填時沿用
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// Default 預設設定
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			GRPCPort:        50051,
			ShutdownTimeout: 10 * time.Second,
		},
		Ledger: LedgerConfig{
			Name:    "bank-ledger",
			Backend: BackendMemory,
			Retry:   ledger.DefaultRetryPolicy(),
		},
		Session: SessionConfig{PoolSize: 10},
		MySQL: mysql.Config{
			Port:            3306,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectRetries:  10,
			ConnectBackoff:  2 * time.Second,
		},
	}
}

// Load 依序套用 預設值 → YAML 檔 → 環境變數
//
// 參數:
//
//	path: 設定檔路徑，空字串代表只用預設值與環境變數
//
// 回傳:
//
//	Config: 設定
//	error: 讀檔、解析或驗證失敗
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, faults.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, faults.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, faults.Errorf("parse environment: %w", err)
	}

	cfg.fill()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fill 補上彼此相依的預設值
func (c *Config) fill() {
	if c.Ledger.WALPath == "" && c.Ledger.Name != "" {
		c.Ledger.WALPath = c.Ledger.Name + ".wal"
	}
	if c.MySQL.MaxOpenConns == 0 {
		c.MySQL.MaxOpenConns = c.Session.PoolSize
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = int32(c.Session.PoolSize)
	}
}

func (c Config) validate() error {
	switch c.Ledger.Backend {
	case BackendMemory, BackendMySQL, BackendPostgres:
	default:
		return faults.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Server.Port <= 0 || c.Server.GRPCPort <= 0 {
		return errors.New("config: server ports must be positive")
	}
	if c.Session.PoolSize <= 0 {
		return errors.New("config: session pool size must be positive")
	}
	return nil
}
