package main

import (
	"context"

	"github.com/quintans/faults"
	"go.uber.org/zap"

	memory_adapter "github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/mysql"
	postgres_adapter "github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/out/postgres"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-doc-ledger/internal/config"
	"github.com/JoeShih716/go-doc-ledger/pkg/ledger"
	"github.com/JoeShih716/go-doc-ledger/pkg/mysql"
	"github.com/JoeShih716/go-doc-ledger/pkg/postgres"
	"github.com/JoeShih716/go-doc-ledger/pkg/wal"
)

// openSession 依設定建立帳本 Session，回傳關閉函式
func openSession(ctx context.Context, cfg config.Config, zl *zap.Logger) (ledger.Session, func() error, error) {
	switch cfg.Ledger.Backend {
	case config.BackendMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, zl)
		if err != nil {
			return nil, nil, faults.Wrap(err)
		}
		store := mysql_adapter.NewStore(client, cfg.Ledger.Retry, zl)
		if cfg.Ledger.Migrate {
			if err := store.Migrate(ctx); err != nil {
				_ = client.Close()
				return nil, nil, faults.Errorf("failed to migrate mysql: %w", err)
			}
		}
		return store, client.Close, nil

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, faults.Wrap(err)
		}
		store := postgres_adapter.NewStore(pool, cfg.Ledger.Retry, zl)
		if cfg.Ledger.Migrate {
			if err := store.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, faults.Errorf("failed to migrate postgres: %w", err)
			}
		}
		return store, func() error { pool.Close(); return nil }, nil

	default:
		// 記憶體帳本，WAL 保證重啟後狀態不遺失
		w, err := wal.Open(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, faults.Errorf("failed to open wal %s: %w", cfg.Ledger.WALPath, err)
		}
		store, err := memory_adapter.NewStore(
			memory_adapter.WithWAL(w),
			memory_adapter.WithUniqueKey(usecase.TableAccounts, usecase.FieldAccountNumber),
			memory_adapter.WithRetryPolicy(cfg.Ledger.Retry),
			memory_adapter.WithLogger(zl),
		)
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}
