// Command budget-service creates and closes per-agent budget allocation
// cycles under the FIXED/PROPORTIONAL/PERFORMANCE_BASED/ROLLOVER strategies.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sardis-payments/sardis/internal/budget"
	"github.com/sardis-payments/sardis/internal/config"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("starting budget-service", "port", cfg.Port)

	var (
		store       budget.Store
		mongoClient *mongo.Client
	)

	if cfg.MongoURI == "" {
		store = budget.NewMemoryStore()
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
		store = budget.NewMongoStore(mongoClient, cfg.MongoDatabase)
		slog.Info("using mongodb store", "db", cfg.MongoDatabase)
	}
	defer func() {
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	reg := metrics.New("budget_service")
	h := &handlers{mgr: budget.NewManager(store)}
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

	slog.Info("shutting down budget-service")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
