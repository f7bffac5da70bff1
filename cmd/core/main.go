package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
	grpcpool "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	var (
		configPath string
		envFiles   []string
	)
	root := &cobra.Command{
		Use:           "core",
		Short:         "Bank ledger gRPC server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFiles...)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config/config.yaml", "yaml config file")
	root.Flags().StringSliceVar(&envFiles, "env-file", nil, ".env files to load (default .env)")

	// Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "core:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. Logger
	log := logger.New(os.Stderr, cfg.Log)
	slog.SetDefault(log)

	// 2. 初始化 Store
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			log.Error("close store failed", "error", err)
		}
	}()

	// 3. 初始化 UseCase
	core := usecase.NewCoreUseCase(store, log, usecase.WithTxTimeout(cfg.Ledger.TxTimeout))

	// 4. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	s := grpc.NewServer(grpcpool.ServerOptions(grpc.UnaryInterceptor(grpc_adapter.LoggingInterceptor(log)))...)
	grpc_adapter.RegisterLedgerServiceServer(s, grpc_adapter.NewGrpcServer(core))
	reflection.Register(s) // 方便用 grpcurl 查看服務

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting gRPC server", "addr", lis.Addr().String(), "store", cfg.Store.Driver)
		serveErr <- s.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("graceful stop timed out, forcing", "timeout", cfg.Server.ShutdownTimeout)
		s.Stop()
	}
	log.Info("server exited")
	return nil
}

// openStore 依設定建立帳本儲存層，回傳的 io.Closer 負責釋放 WAL 或資料庫連線
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (usecase.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.StoreSQL:
		client, err := database.NewClient(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, err
		}
		store := sqlstore.NewStore(client)
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		log.Info("connected to database", "driver", cfg.Database.Driver)
		return store, client, nil

	default:
		var w *wal.WAL
		if cfg.Store.WALPath != "" {
			var err error
			if w, err = wal.NewWAL(cfg.Store.WALPath); err != nil {
				return nil, nil, fmt.Errorf("init WAL: %w", err)
			}
		}
		ledger, err := memory_adapter.NewMutexLedger(w)
		if err != nil {
			if w != nil {
				w.Close()
			}
			return nil, nil, fmt.Errorf("init MutexLedger: %w", err)
		}
		log.Info("memory ledger ready", "wal", cfg.Store.WALPath)
		return ledger, closerFunc(func() error {
			if w == nil {
				return nil
			}
			return w.Close()
		}), nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
