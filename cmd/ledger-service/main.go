// Command ledger-service ingests cross-rail settlement events into the
// canonical ledger and processes Lithic ACH webhooks into it.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sardis-payments/sardis/internal/canonledger"
	"github.com/sardis-payments/sardis/internal/config"
	"github.com/sardis-payments/sardis/internal/events"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/metrics"
	"github.com/sardis-payments/sardis/internal/replay"
	"github.com/sardis-payments/sardis/internal/treasury"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("starting ledger-service", "port", cfg.Port)

	var (
		ledgerStore   canonledger.Store
		treasuryStore treasury.Store
		replayStore   replay.Store
		mongoClient   *mongo.Client
	)

	if cfg.MongoURI == "" {
		ledgerStore = canonledger.NewMemoryStore()
		treasuryStore = treasury.NewMemoryStore()
		replayStore = replay.NewMemoryStore()
		slog.Info("using in-memory stores")
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
		ledgerStore = canonledger.NewMongoStore(mongoClient, cfg.MongoDatabase)
		treasuryStore = treasury.NewMongoStore(mongoClient, cfg.MongoDatabase)
		replayStore = replay.NewMongoStore(mongoClient, cfg.MongoDatabase, "treasury_webhook_replay")
		slog.Info("using mongodb stores", "db", cfg.MongoDatabase)
	}
	defer func() {
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	ledger := canonledger.New(ledgerStore).WithPublisher(events.NewPublisher("ledger-service"))
	webhookGuard := replay.NewWebhookGuard(replayStore)
	treasurySvc := treasury.NewService(treasuryStore, ledger, webhookGuard, treasury.DefaultTreasuryLimits())

	h := &handlers{
		ledger:        ledger,
		ledgerStore:   ledgerStore,
		treasurySvc:   treasurySvc,
		webhookGuard:  webhookGuard,
		webhookSecret: strings.TrimSpace(os.Getenv("LITHIC_WEBHOOK_SECRET")),
	}
	reg := metrics.New("ledger_service")
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.Handle("/", newRouter(h))

	rl := httpmw.NewRateLimiter(1200)
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

	slog.Info("shutting down ledger-service")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
