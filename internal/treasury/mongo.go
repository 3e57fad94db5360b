package treasury

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	payments *mongo.Collection
	banks    *mongo.Collection
	webhooks *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		payments: db.Collection("treasury_ach_payments"),
		banks:    db.Collection("treasury_external_bank_accounts"),
		webhooks: db.Collection("treasury_webhook_events"),
	}
}

func (s *MongoStore) docID(orgID, token string) string { return orgID + "|" + token }

func (s *MongoStore) GetACHPayment(ctx context.Context, orgID, paymentToken string) (*ACHPaymentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.payments.FindOne(ctx, bson.M{"organization_id": orgID, "_id": paymentToken})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var p ACHPaymentRecord
	if err := res.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) UpsertACHPayment(ctx context.Context, payment ACHPaymentRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.UpdatedAt = time.Now().UTC()
	_, err := s.payments.ReplaceOne(ctx, bson.M{"_id": payment.PaymentToken}, payment, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) UpdateACHPaymentStatus(ctx context.Context, orgID, paymentToken string, status PaymentStatus, result, returnCode string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	if result != "" {
		set["result"] = result
	}
	if returnCode != "" {
		set["return_reason_code"] = returnCode
	}
	_, err := s.payments.UpdateOne(ctx, bson.M{"organization_id": orgID, "_id": paymentToken}, bson.M{"$set": set})
	return err
}

func (s *MongoStore) IncrementRetryCount(ctx context.Context, orgID, paymentToken string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.payments.FindOneAndUpdate(ctx,
		bson.M{"organization_id": orgID, "_id": paymentToken},
		bson.M{"$inc": bson.M{"retry_count": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if res.Err() != nil {
		return 0, res.Err()
	}
	var p ACHPaymentRecord
	if err := res.Decode(&p); err != nil {
		return 0, err
	}
	return p.RetryCount, nil
}

func (s *MongoStore) AppendACHEvents(ctx context.Context, orgID, paymentToken string, events []ACHEventRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	anyEvents := make([]any, len(events))
	for i, e := range events {
		anyEvents[i] = e
	}
	_, err := s.payments.UpdateOne(ctx, bson.M{"organization_id": orgID, "_id": paymentToken},
		bson.M{"$push": bson.M{"events": bson.M{"$each": anyEvents}}})
	return err
}

func (s *MongoStore) PauseExternalBankAccount(ctx context.Context, orgID, token, reason, returnCode string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.banks.UpdateOne(ctx, bson.M{"_id": s.docID(orgID, token)},
		bson.M{"$set": bson.M{
			"organization_id": orgID, "token": token, "is_paused": true,
			"pause_reason": reason, "return_code": returnCode, "updated_at": time.Now().UTC(),
		}}, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) GetExternalBankAccount(ctx context.Context, orgID, token string) (*ExternalBankAccountRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.banks.FindOne(ctx, bson.M{"_id": s.docID(orgID, token)})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var b ExternalBankAccountRecord
	if err := res.Decode(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *MongoStore) SumOrgPaymentsSince(ctx context.Context, orgID string, since time.Time) (int64, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"organization_id": orgID, "created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount_minor"}, "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.payments.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close(ctx)
	var out struct {
		Total int64 `bson:"total"`
		Count int   `bson:"count"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&out); err != nil {
			return 0, 0, err
		}
	}
	return out.Total, out.Count, nil
}

func (s *MongoStore) RecordWebhookEvent(ctx context.Context, provider, eventID string, metadata map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.webhooks.InsertOne(ctx, bson.M{
		"provider": provider, "event_id": eventID, "metadata": metadata, "processed_at": time.Now().UTC(),
	})
	return err
}
