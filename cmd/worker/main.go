package main

import (
	"context"
	"os/signal"
	"syscall"

	"marketsync-service/internal/bootstrap"
	"marketsync-service/internal/infrastructure/grpc/pricefeed"
	"marketsync-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func init() { _ = godotenv.Load() }

func main() {
	log := logx.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, cleanup, err := bootstrap.BuildWorker(ctx)
	if err != nil {
		log.Fatal("init worker", zap.Error(err))
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.Recorder.Start(gctx)
		return nil
	})
	g.Go(func() error { return w.Poller.Run(gctx) })
	if w.Feed != nil {
		g.Go(func() error { return pricefeed.RunServer(gctx, w.GRPCAddr, w.Feed, log) })
	}

	if err := g.Wait(); err != nil {
		log.Fatal("worker exited", zap.Error(err))
	}
	log.Info("worker stopped")
}
