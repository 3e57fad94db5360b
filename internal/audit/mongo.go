package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	entries *mongo.Collection
	anchors *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		entries: db.Collection("audit_entries"),
		anchors: db.Collection("audit_anchors"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	})
	return err
}

func (s *MongoStore) AppendEntry(ctx context.Context, entry LedgerEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.entries.InsertOne(ctx, entry)
	return err
}

func (s *MongoStore) GetLastEntry(ctx context.Context) (*LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.entries.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var e LedgerEntry
	if err := res.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *MongoStore) ListUnanchoredEntries(ctx context.Context, limit int) ([]LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.entries.Find(ctx, bson.M{"anchor_id": bson.M{"$exists": false}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []LedgerEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) MarkEntriesAnchored(ctx context.Context, entryIDs []string, anchorID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.entries.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": entryIDs}}, bson.M{"$set": bson.M{"anchor_id": anchorID}})
	return err
}

func (s *MongoStore) InsertAnchor(ctx context.Context, anchor Anchor) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.anchors.InsertOne(ctx, anchor)
	return err
}

func (s *MongoStore) UpdateAnchorStatus(ctx context.Context, anchorID string, status AnchorStatus, txHash string, blockNumber *int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.anchors.UpdateOne(ctx, bson.M{"_id": anchorID}, bson.M{"$set": bson.M{
		"status": status, "tx_hash": txHash, "block_number": blockNumber, "updated_at": time.Now().UTC(),
	}})
	return err
}

func (s *MongoStore) GetAnchor(ctx context.Context, anchorID string) (*Anchor, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.anchors.FindOne(ctx, bson.M{"_id": anchorID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var a Anchor
	if err := res.Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) ListAnchors(ctx context.Context, limit int) ([]Anchor, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.anchors.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Anchor
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
