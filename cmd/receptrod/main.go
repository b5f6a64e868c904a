// Command receptrod serves the pipeline over gRPC and HTTP, processing uploads
// and watched directories on a background worker pool.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receptro/internal/app"
	"github.com/joseph-ayodele/receptro/internal/async"
	"github.com/joseph-ayodele/receptro/internal/common"
	"github.com/joseph-ayodele/receptro/internal/ingest"
	"github.com/joseph-ayodele/receptro/internal/retention"
	"github.com/joseph-ayodele/receptro/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := common.LoadConfig()
	if err := cfg.ValidateServer(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("receptrod exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	router, err := app.NewRouter(cfg, logger)
	if err != nil {
		return err
	}

	results, err := app.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := results.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	queue := async.NewProcessorQueue(router, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithSink(results),
	)

	svc := server.NewService(router, queue, results, logger).
		WithIngestor(ingest.NewFSIngestor(queue, "ingest", logger))

	if cfg.Retention.MaxAge > 0 {
		sweeper, err := retention.NewSweeper(retention.Config{
			OutputDir: cfg.Pipeline.OutputDir,
			UploadDir: cfg.Server.UploadDir,
			MaxAge:    cfg.Retention.MaxAge,
			Schedule:  cfg.Retention.Schedule,
		}, results, logger)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Watch.Dirs) > 0 {
		watchCfg := ingest.WatchConfig{
			Roots:       cfg.Watch.Dirs,
			InitialScan: true,
			Debounce:    cfg.Watch.Debounce,
			SkipHidden:  cfg.Watch.SkipHidden,
		}
		watcher := ingest.NewFSIngestor(queue, "watch", logger)
		g.Go(func() error {
			err := ingest.Watch(gctx, watchCfg, watcher, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if cfg.Server.GRPCAddr != "" {
		addr := listenAddr(cfg.Server.GRPCAddr)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", addr, "error", err)
			return err
		}
		grpcSrv := server.NewGRPC(svc, logger)
		g.Go(func() error {
			logger.Info("grpc listening", "addr", addr)
			return grpcSrv.Server.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.Stop()
			return nil
		})
	}

	if cfg.Server.HTTPAddr != "" {
		httpSrv := &http.Server{
			Addr: listenAddr(cfg.Server.HTTPAddr),
			Handler: server.NewHTTPHandler(svc, server.HTTPConfig{
				UploadDir:     cfg.Server.UploadDir,
				MaxUploadSize: cfg.Server.MaxUploadSize,
			}, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("http listening", "addr", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	logger.Info("shutting down", "reason", context.Cause(gctx))

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	queue.Shutdown(sctx)
	return err
}

func listenAddr(addr string) string {
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}
