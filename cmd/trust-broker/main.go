// Command trust-broker serves identity/KYA transitions, trust evaluation,
// and the declarative policy plugin registry.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sardis-payments/sardis/internal/agentcard"
	"github.com/sardis-payments/sardis/internal/config"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/identity"
	"github.com/sardis-payments/sardis/internal/metrics"
	"github.com/sardis-payments/sardis/internal/policy"
	"github.com/sardis-payments/sardis/internal/ratelimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("starting trust-broker", "port", cfg.Port)

	var (
		identityStore identity.Store
		mongoClient   *mongo.Client
	)

	if cfg.MongoURI == "" {
		identityStore = identity.NewMemoryStore()
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
		identityStore = identity.NewMongoStore(mongoClient, cfg.MongoDatabase)
		slog.Info("using mongodb stores", "db", cfg.MongoDatabase)
	}
	defer func() {
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	identityRegistry := identity.NewRegistry(identityStore).WithCardResolver(agentcard.NewResolver())

	h := &handlers{
		identityRegistry: identityRegistry,
		policyRegistry:   policy.NewRegistry(),
		velocityLimiter:  ratelimit.New(ratelimit.DefaultVelocityConfig()),
	}
	reg := metrics.New("trust_broker")
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

	slog.Info("shutting down trust-broker")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
