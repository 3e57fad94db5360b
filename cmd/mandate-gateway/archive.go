package main

import (
	"context"
	"sync"
	"time"

	"github.com/sardis-payments/sardis/internal/ap2"
	"github.com/sardis-payments/sardis/internal/events"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// memoryArchive satisfies ap2.Archive by keeping each accepted chain keyed
// on its payment mandate id, the same "store exactly once" contract
// internal/replay's stores give CheckAndStore.
type memoryArchive struct {
	mu        sync.Mutex
	chains    map[string]ap2.Chain
	publisher *events.Publisher
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{chains: make(map[string]ap2.Chain)}
}

func (a *memoryArchive) StoreChain(ctx context.Context, chain ap2.Chain) error {
	a.mu.Lock()
	a.chains[chain.Payment.MandateID] = chain
	a.mu.Unlock()
	publishChainArchived(ctx, a.publisher, chain)
	return nil
}

// mongoArchive is the same contract backed by a dedicated collection.
type mongoArchive struct {
	col       *mongo.Collection
	publisher *events.Publisher
}

func newMongoArchive(client *mongo.Client, dbName string) *mongoArchive {
	return &mongoArchive{col: client.Database(dbName).Collection("mandate_chains")}
}

func (a *mongoArchive) StoreChain(ctx context.Context, chain ap2.Chain) error {
	storeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.col.InsertOne(storeCtx, bson.M{
		"_id":       chain.Payment.MandateID,
		"chain":     chain,
		"stored_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	publishChainArchived(ctx, a.publisher, chain)
	return nil
}

func publishChainArchived(ctx context.Context, publisher *events.Publisher, chain ap2.Chain) {
	if publisher == nil {
		return
	}
	_ = publisher.Publish(ctx, events.EventMandateChainArchived, "", chain.Payment.MandateID, map[string]any{
		"payment_mandate_id": chain.Payment.MandateID,
		"subject":            chain.Payment.Subject,
		"domain":             chain.Payment.Domain,
		"amount_minor":       chain.Payment.AmountMinor,
	})
}
