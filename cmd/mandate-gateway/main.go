// Command mandate-gateway serves mandate verification, checkout session,
// and escrow/service-request operations over HTTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sardis-payments/sardis/internal/ap2"
	"github.com/sardis-payments/sardis/internal/checkout"
	"github.com/sardis-payments/sardis/internal/config"
	"github.com/sardis-payments/sardis/internal/escrow"
	"github.com/sardis-payments/sardis/internal/events"
	"github.com/sardis-payments/sardis/internal/httpmw"
	"github.com/sardis-payments/sardis/internal/identity"
	"github.com/sardis-payments/sardis/internal/metrics"
	"github.com/sardis-payments/sardis/internal/ratelimit"
	"github.com/sardis-payments/sardis/internal/replay"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("starting mandate-gateway", "port", cfg.Port)

	var (
		replayStore   replay.Store
		identityStore identity.Store
		checkoutStore checkout.Store
		escrowStore   escrow.Store
		archive       ap2.Archive
		mongoClient   *mongo.Client
	)

	publisher := events.NewPublisher("mandate-gateway")

	if cfg.MongoURI == "" {
		replayStore = replay.NewMemoryStore()
		identityStore = identity.NewMemoryStore()
		checkoutStore = checkout.NewMemoryStore()
		escrowStore = escrow.NewMemoryStore()
		memArchive := newMemoryArchive()
		memArchive.publisher = publisher
		archive = memArchive
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
		replayStore = replay.NewMongoStore(mongoClient, cfg.MongoDatabase, "mandate_replay")
		identityStore = identity.NewMongoStore(mongoClient, cfg.MongoDatabase)
		checkoutStore = checkout.NewMongoStore(mongoClient, cfg.MongoDatabase)
		escrowStore = escrow.NewMongoStore(mongoClient, cfg.MongoDatabase)
		mongArchive := newMongoArchive(mongoClient, cfg.MongoDatabase)
		mongArchive.publisher = publisher
		archive = mongArchive
		slog.Info("using mongodb stores", "db", cfg.MongoDatabase)
	}
	defer func() {
		if mongoClient != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}
	}()

	replayCache := replay.NewCache(replayStore)
	identityRegistry := identity.NewRegistry(identityStore)
	rateLimiter := ratelimit.New(ratelimit.DefaultVerifierConfig())

	verifierCfg := ap2.Config{
		AllowedDomains:          cfg.AllowedDomains,
		DefaultCanonicalization: ap2.Canonicalization(cfg.DefaultCanonicalization),
	}
	if verifierCfg.DefaultCanonicalization == "" {
		verifierCfg.DefaultCanonicalization = ap2.CanonPipe
	}
	verifier := ap2.NewVerifier(verifierCfg, replayCache, rateLimiter, identityRegistry, archive)

	signer := newDevSigner("mandate-gateway")
	checkoutMgr := checkout.NewManager(checkoutStore, signer)
	escrowMgr := escrow.NewManager(escrowStore)

	h := &handlers{verifier: verifier, checkoutMgr: checkoutMgr, escrowMgr: escrowMgr}
	reg := metrics.New("mandate_gateway")
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

	slog.Info("shutting down mandate-gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
