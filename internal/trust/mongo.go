package trust

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{coll: client.Database(dbName).Collection("trust_score_cache")}
}

func (s *MongoStore) Get(ctx context.Context, agentID string) (*CacheEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.coll.FindOne(ctx, bson.M{"_id": agentID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var e CacheEntry
	if err := res.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MongoStore) Put(ctx context.Context, entry CacheEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": entry.AgentID}, entry, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Invalidate(ctx context.Context, agentID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": agentID})
	return err
}
