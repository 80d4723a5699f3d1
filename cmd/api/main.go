package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"marketsync-service/internal/bootstrap"
	"marketsync-service/internal/config"
	"marketsync-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, cleanup, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		logger.Fatal("bootstrap api", zap.Error(err))
	}
	defer cleanup()

	if err := api.Poller.Start(ctx); err != nil {
		logger.Fatal("start poller", zap.Error(err))
	}
	if addr, err := api.Session.Restore(ctx); err != nil {
		logger.Warn("wallet restore failed", zap.Error(err))
	} else if addr != "" {
		logger.Info("wallet restored", zap.String("address", addr))
	}

	server := &http.Server{
		Addr:    ":" + api.Config.Port,
		Handler: api.Handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range api.Workers {
		w := w
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		api.Poller.Stop()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}
