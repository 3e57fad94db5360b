// Command audit-service appends hash-chained audit entries and runs the
// background Merkle-anchor scheduler against a mock chain executor.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sardis-payments/sardis/internal/audit"
	"github.com/sardis-payments/sardis/internal/config"
	"github.com/sardis-payments/sardis/internal/events"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/metrics"
	"github.com/sardis-payments/sardis/internal/providers"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("starting audit-service", "port", cfg.Port)

	var (
		store       audit.Store
		mongoClient *mongo.Client
	)

	if cfg.MongoURI == "" {
		store = audit.NewMemoryStore()
		slog.Info("using in-memory store")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var err error
		mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			slog.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			slog.Error("mongo ping failed", "error", err)
			os.Exit(1)
		}
		mongoStore := audit.NewMongoStore(mongoClient, cfg.MongoDatabase)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			slog.Warn("failed to create indexes", "error", err)
		}
		store = mongoStore
		slog.Info("using mongodb store", "db", cfg.MongoDatabase)
	}
	defer func() {
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	reg := metrics.New("audit_service")
	publisher := events.NewPublisher("audit-service")

	ledger := audit.NewLedger(store).WithPublisher(publisher)
	chainExecutor := providers.NewMockChainExecutor()
	anchorCfg := audit.DefaultAnchorConfig()
	scheduler := audit.NewAnchorScheduler(store, chainExecutor, anchorCfg, logger).WithPublisher(publisher)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go runAnchorLoop(schedulerCtx, scheduler, anchorCfg, reg, logger)

	h := &handlers{ledger: ledger, store: store}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/", newRouter(h))

	rl := httpmw.NewRateLimiter(600)
	chained := httpmw.Chain(mux, httpmw.RequestID, httpmw.Logging, reg.Middleware, httpmw.Recovery, httpmw.RateLimit(rl))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      chained,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down audit-service")
	stopScheduler()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// runAnchorLoop drives scheduler.Tick on cfg.AnchorInterval, recording a
// background_loop_runs_total observation per tick. It repeats
// AnchorScheduler.Run's ticker loop (it does not call Run) so the
// scrape-visible scheduler has the same instrumentation as the HTTP layer.
func runAnchorLoop(ctx context.Context, scheduler *audit.AnchorScheduler, cfg audit.AnchorConfig, reg *metrics.Registry, logger *slog.Logger) {
	if !cfg.EnableAutoAnchor {
		logger.Info("audit anchor scheduler disabled")
		return
	}
	ticker := time.NewTicker(cfg.AnchorInterval)
	defer ticker.Stop()
	logger.Info("audit anchor scheduler started", "interval", cfg.AnchorInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("audit anchor scheduler stopped")
			return
		case <-ticker.C:
			if _, err := scheduler.Tick(ctx); err != nil {
				logger.Error("audit anchor tick failed", "error", err)
				reg.ObserveBackgroundRun("anchor_scheduler", "error")
				continue
			}
			reg.ObserveBackgroundRun("anchor_scheduler", "ok")
		}
	}
}
