package org

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	orgs    *mongo.Collection
	teams   *mongo.Collection
	members *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		orgs:    db.Collection("organizations"),
		teams:   db.Collection("teams"),
		members: db.Collection("org_members"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.orgs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "slug", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) InsertOrg(ctx context.Context, o Organization) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.orgs.InsertOne(ctx, o)
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlugExists
	}
	return err
}

func (s *MongoStore) GetOrg(ctx context.Context, orgID string) (*Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.orgs.FindOne(ctx, bson.M{"_id": orgID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var o Organization
	if err := res.Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *MongoStore) GetOrgBySlug(ctx context.Context, slug string) (*Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.orgs.FindOne(ctx, bson.M{"slug": slug})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var o Organization
	if err := res.Decode(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *MongoStore) UpdateOrg(ctx context.Context, o Organization) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	o.UpdatedAt = time.Now().UTC()
	_, err := s.orgs.ReplaceOne(ctx, bson.M{"_id": o.OrgID}, o)
	return err
}

func (s *MongoStore) InsertTeam(ctx context.Context, t Team) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.teams.InsertOne(ctx, t)
	return err
}

func (s *MongoStore) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.teams.FindOne(ctx, bson.M{"_id": teamID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var t Team
	if err := res.Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) ListTeams(ctx context.Context, orgID string) ([]Team, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := s.teams.Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Team
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateTeam(ctx context.Context, t Team) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	t.UpdatedAt = time.Now().UTC()
	_, err := s.teams.ReplaceOne(ctx, bson.M{"_id": t.TeamID}, t)
	return err
}

func (s *MongoStore) InsertMember(ctx context.Context, m Member) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.members.InsertOne(ctx, m)
	return err
}

func (s *MongoStore) GetMember(ctx context.Context, memberID string) (*Member, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.members.FindOne(ctx, bson.M{"_id": memberID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var m Member
	if err := res.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MongoStore) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cur, err := s.members.Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Member
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpdateMember(ctx context.Context, m Member) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.members.ReplaceOne(ctx, bson.M{"_id": m.MemberID}, m)
	return err
}
