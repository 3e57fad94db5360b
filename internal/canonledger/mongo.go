package canonledger

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	journeys *mongo.Collection
	events   *mongo.Collection
	breaks   *mongo.Collection
	reviews  *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		journeys: db.Collection("canonical_journeys"),
		events:   db.Collection("canonical_events"),
		breaks:   db.Collection("reconciliation_breaks"),
		reviews:  db.Collection("manual_review_items"),
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.journeys.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "rail", Value: 1}, {Key: "external_reference", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_event_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"provider_event_id": bson.M{"$exists": true, "$ne": ""}}),
	})
	return err
}

func (s *MongoStore) GetJourneyByKey(ctx context.Context, key JourneyKey) (*CanonicalJourney, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.journeys.FindOne(ctx, bson.M{"organization_id": key.OrganizationID, "rail": key.Rail, "external_reference": key.ExternalReference})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var j CanonicalJourney
	if err := res.Decode(&j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *MongoStore) GetJourney(ctx context.Context, journeyID string) (*CanonicalJourney, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.journeys.FindOne(ctx, bson.M{"_id": journeyID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var j CanonicalJourney
	if err := res.Decode(&j); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *MongoStore) UpsertJourney(ctx context.Context, journey CanonicalJourney) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.journeys.ReplaceOne(ctx, bson.M{"_id": journey.JourneyID}, journey, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) ListJourneys(ctx context.Context, orgID string, rail, state, breakStatus string, limit int) ([]CanonicalJourney, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{"organization_id": orgID}
	if rail != "" {
		filter["rail"] = rail
	}
	if state != "" {
		filter["canonical_state"] = state
	}
	if breakStatus != "" {
		filter["break_status"] = breakStatus
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.journeys.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []CanonicalJourney
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) HasProviderEvent(ctx context.Context, provider, providerEventID string) (bool, error) {
	if providerEventID == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := s.events.CountDocuments(ctx, bson.M{"provider": provider, "provider_event_id": providerEventID})
	return n > 0, err
}

func (s *MongoStore) InsertEvent(ctx context.Context, event CanonicalEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.events.InsertOne(ctx, event)
	return err
}

func (s *MongoStore) InsertBreakIfAbsent(ctx context.Context, b ReconciliationBreak) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := s.breaks.CountDocuments(ctx, bson.M{"journey_id": b.JourneyID, "break_type": b.BreakType, "status": BreakOpen})
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.breaks.InsertOne(ctx, b)
	return err == nil, err
}

func (s *MongoStore) ListBreaks(ctx context.Context, orgID, status string, limit int) ([]ReconciliationBreak, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{"organization_id": orgID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "detected_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.breaks.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []ReconciliationBreak
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) EnqueueReviewIfAbsent(ctx context.Context, item ManualReviewItem) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := s.reviews.CountDocuments(ctx, bson.M{
		"journey_id":  item.JourneyID,
		"reason_code": item.ReasonCode,
		"status":      bson.M{"$in": []ReviewStatus{ReviewQueued, ReviewInReview}},
	})
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.reviews.InsertOne(ctx, item)
	return err == nil, err
}

func (s *MongoStore) ListReviews(ctx context.Context, orgID, status string, limit int) ([]ManualReviewItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	filter := bson.M{"organization_id": orgID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.reviews.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []ManualReviewItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) ResolveReview(ctx context.Context, orgID, reviewID string, status ReviewStatus, notes string) (*ManualReviewItem, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	setFields := update["$set"].(bson.M)
	if notes != "" {
		setFields["resolution_notes"] = notes
	}
	if status == ReviewResolved || status == ReviewDismissed {
		setFields["resolved_at"] = time.Now().UTC()
	}
	res := s.reviews.FindOneAndUpdate(ctx, bson.M{"_id": reviewID, "organization_id": orgID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var item ManualReviewItem
	if err := res.Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}
