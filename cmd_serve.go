package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"khabiteq-backend/controller"
	"khabiteq-backend/dao"
	"khabiteq-backend/pkg/khabiteq"
	"khabiteq-backend/storage"
	"khabiteq-backend/usecase"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) storageFactory(repo *dao.StorageRepository) storage.Factory {
	switch a.cfg.Storage.Backend {
	case "file":
		return storage.NewFileFactory(a.cfg.Storage.Path)
	case "memory":
		return storage.NewMemoryFactory()
	default:
		return storage.NewSQLFactory(repo)
	}
}

func (a *app) serve(ctx context.Context) error {
	conn, dialect, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	client := khabiteq.NewClient(a.cfg.API.BaseURL, a.cfg.API.Timeout, a.logger.Named("khabiteq"))
	defer client.Close()

	counterRepo := dao.NewCounterRepository(conn, dialect)
	logRepo := dao.NewNegotiationLogRepository(conn, dialect)
	storageRepo := dao.NewStorageRepository(conn, dialect)

	guard := usecase.NewCounterGuard(counterRepo, a.logger.Named("ledger"))
	negotiationUsecase := usecase.NewNegotiationUsecase(client, guard, logRepo, a.logger.Named("negotiation"))
	selectionRegistry := usecase.NewSelectionRegistry(a.storageFactory(storageRepo), a.logger.Named("selection"))

	router := controller.NewRouter(
		controller.NewNegotiationController(negotiationUsecase, a.logger),
		controller.NewSelectionController(selectionRegistry, a.logger),
		a.cfg.Server.AllowOrigin,
		a.logger.Named("http"),
	)

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.evictIdle(ctx, negotiationUsecase, selectionRegistry)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.String("port", a.cfg.Server.Port),
			zap.String("storage", a.cfg.Storage.Backend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// evictIdle periodically forgets negotiations and selections nobody touched
// within the configured window, until ctx ends.
func (a *app) evictIdle(ctx context.Context, negotiations *usecase.NegotiationUsecase, selections *usecase.SelectionRegistry) {
	maxIdle := a.cfg.Server.IdleEviction
	if maxIdle <= 0 {
		return
	}

	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := negotiations.EvictIdle(maxIdle)
			m := selections.EvictIdle(maxIdle)
			if n+m > 0 {
				a.logger.Debug("evicted idle entries", zap.Int("negotiations", n), zap.Int("selections", m))
			}
		}
	}
}
