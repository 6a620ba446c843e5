package mysql

import (
	"fmt"
	"time"
)

// Config 定義 MySQL 連線與連線池的配置
type Config struct {
	Host     string `yaml:"host" env:"HOST"`         // 資料庫主機地址
	Port     int    `yaml:"port" env:"PORT"`         // 資料庫埠號 (預設 3306)
	User     string `yaml:"user" env:"USER"`         // 使用者名稱
	Password string `yaml:"password" env:"PASSWORD"` // 密碼
	DBName   string `yaml:"db_name" env:"DB_NAME"`   // 資料庫名稱

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`       // 最大開啟連線數
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`       // 最大閒置連線數
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"` // 連線最大存活時間

	// 啟動時連線重試
	ConnectRetries uint64        `yaml:"connect_retries" env:"CONNECT_RETRIES"`
	ConnectBackoff time.Duration `yaml:"connect_backoff" env:"CONNECT_BACKOFF"`

	// GORM 設定
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"` // Log 等級: "silent", "error", "warn", "info"
}

// DSN (Data Source Name) 產生連線字串
// 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}
