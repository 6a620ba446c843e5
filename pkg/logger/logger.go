// Package logger 建立全程序共用的 zap logger
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config logger 設定
type Config struct {
	// Level debug / info / warn / error，空字串時 development 為 debug，其餘為 info
	Level string `yaml:"level" env:"LEVEL"`
	// Development 使用 console 編碼並輸出 stacktrace
	Development bool `yaml:"development" env:"DEVELOPMENT"`
}

// New 建立 logger
//
// 回傳:
//
//	*zap.Logger: logger
//	zap.AtomicLevel: 可在執行期間調整的等級
//	error: 等級字串無法解析
func New(cfg Config) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "json"
		zc.DisableStacktrace = true
	}
	zc.Level = level
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zc.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, level, nil
}

func resolveLevel(cfg Config) (zap.AtomicLevel, error) {
	if strings.TrimSpace(cfg.Level) == "" {
		if cfg.Development {
			return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
		}
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	var parsed zapcore.Level
	if err := parsed.Set(cfg.Level); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", cfg.Level, err)
	}
	return zap.NewAtomicLevelAt(parsed), nil
}
