package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/adapter/in/rest"
	"github.com/JoeShih716/go-doc-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-doc-ledger/internal/config"
	"github.com/JoeShih716/go-doc-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 建立 logger
	zl, _, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zl = zl.With(zap.String("ledger", cfg.Ledger.Name))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. 開啟帳本 Session (整個程序共用)
	session, closeSession, err := openSession(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to open ledger session", zap.String("backend", cfg.Ledger.Backend), zap.Error(err))
	}
	defer func() {
		if err := closeSession(); err != nil {
			zl.Warn("close ledger session", zap.Error(err))
		}
	}()
	zl.Info("ledger session ready", zap.String("backend", cfg.Ledger.Backend))

	// 4. 初始化 UseCase
	coordinator := usecase.NewCoordinator(session, zl)
	accounts := usecase.NewAccountService(session, zl)

	// 5. 啟動 HTTP 與 gRPC
	e := rest.NewServer(rest.NewHandler(coordinator, accounts, zl))
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		zl.Info("starting http server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	grpcServer := grpc.NewServer()
	grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(coordinator, accounts, zl))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		zl.Fatal("failed to listen", zap.Int("port", cfg.Server.GRPCPort), zap.Error(err))
	}
	go func() {
		zl.Info("starting grpc server", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Error("grpc server stopped", zap.Error(err))
			stop()
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	zl.Info("server exited")
}
