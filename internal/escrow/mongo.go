package escrow

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	requests  *mongo.Collection
	escrows   *mongo.Collection
	responses *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		requests:  db.Collection("service_requests"),
		escrows:   db.Collection("escrows"),
		responses: db.Collection("service_responses"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "request_id", Value: 1}},
	})
	return err
}

func (s *MongoStore) UpsertRequest(ctx context.Context, request ServiceRequest) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.requests.ReplaceOne(ctx, bson.M{"_id": request.RequestID}, request, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetRequest(ctx context.Context, requestID string) (*ServiceRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.requests.FindOne(ctx, bson.M{"_id": requestID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var request ServiceRequest
	if err := res.Decode(&request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *MongoStore) ListRequests(ctx context.Context) ([]ServiceRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := s.requests.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []ServiceRequest
	for cur.Next(ctx) {
		var request ServiceRequest
		if err := cur.Decode(&request); err != nil {
			return nil, err
		}
		out = append(out, request)
	}
	return out, cur.Err()
}

func (s *MongoStore) UpsertEscrow(ctx context.Context, escrow Escrow) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.escrows.ReplaceOne(ctx, bson.M{"_id": escrow.EscrowID}, escrow, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetEscrow(ctx context.Context, escrowID string) (*Escrow, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.escrows.FindOne(ctx, bson.M{"_id": escrowID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var escrow Escrow
	if err := res.Decode(&escrow); err != nil {
		return nil, err
	}
	return &escrow, nil
}

func (s *MongoStore) AppendResponse(ctx context.Context, response ServiceResponse) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.responses.InsertOne(ctx, response)
	return err
}

func (s *MongoStore) ListResponses(ctx context.Context, requestID string) ([]ServiceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := s.responses.Find(ctx, bson.M{"request_id": requestID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []ServiceResponse
	for cur.Next(ctx) {
		var response ServiceResponse
		if err := cur.Decode(&response); err != nil {
			return nil, err
		}
		out = append(out, response)
	}
	return out, cur.Err()
}
