package identity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	profiles     *mongo.Collection
	bindings     *mongo.Collection
	attestations *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		profiles:     db.Collection("agent_profiles"),
		bindings:     db.Collection("agent_key_bindings"),
		attestations: db.Collection("trust_attestations"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.bindings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "agent_id", Value: 1}, {Key: "domain", Value: 1}, {Key: "algorithm", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) UpsertProfile(ctx context.Context, profile AgentProfile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.profiles.ReplaceOne(ctx, bson.M{"_id": profile.AgentID}, profile, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetProfile(ctx context.Context, agentID string) (*AgentProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.profiles.FindOne(ctx, bson.M{"_id": agentID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var p AgentProfile
	if err := res.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) AddBinding(ctx context.Context, binding Binding) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{"agent_id": binding.AgentID, "domain": binding.Domain, "algorithm": binding.Algorithm}
	_, err := s.bindings.ReplaceOne(ctx, filter, binding, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) FindBinding(ctx context.Context, agentID, domain, algorithm string) (*Binding, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.bindings.FindOne(ctx, bson.M{"agent_id": agentID, "domain": domain, "algorithm": algorithm})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var b Binding
	if err := res.Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *MongoStore) SaveAttestation(ctx context.Context, att TrustAttestation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.attestations.ReplaceOne(ctx, bson.M{"_id": att.ID}, att, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) ListAttestations(ctx context.Context, agentID string) ([]TrustAttestation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := s.attestations.Find(ctx, bson.M{"agent_id": agentID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []TrustAttestation
	for cur.Next(ctx) {
		var a TrustAttestation
		if err := cur.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, cur.Err()
}
