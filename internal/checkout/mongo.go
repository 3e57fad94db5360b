package checkout

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	sessions *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{sessions: db.Collection("checkout_sessions")}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
	})
	return err
}

func (s *MongoStore) Upsert(ctx context.Context, session Session) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.sessions.FindOne(ctx, bson.M{"_id": id})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var session Session
	if err := res.Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MongoStore) ListExpirable(ctx context.Context, asOf time.Time) ([]Session, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := s.sessions.Find(ctx, bson.M{
		"status":     bson.M{"$in": []Status{StatusOpen, StatusPendingPayment, StatusRequiresEscalation}},
		"expires_at": bson.M{"$lte": asOf},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Session
	for cur.Next(ctx) {
		var session Session
		if err := cur.Decode(&session); err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, cur.Err()
}
