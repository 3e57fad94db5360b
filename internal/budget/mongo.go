package budget

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// shopspring/decimal has no native bson codec, so Mongo documents store
// decimal fields as strings and the Mongo store marshals/unmarshals
// through these mirror types.
type mongoAllocation struct {
	AllocationID string             `bson:"_id"`
	CycleID      string             `bson:"cycle_id"`
	AgentID      string             `bson:"agent_id"`
	AmountMinor  string             `bson:"amount_minor"`
	Currency     string             `bson:"currency"`
	Period       Period             `bson:"period"`
	Strategy     AllocationStrategy `bson:"strategy"`
	AllocatedAt  time.Time          `bson:"allocated_at"`
	ExpiresAt    time.Time          `bson:"expires_at"`
}

type mongoCycle struct {
	CycleID        string             `bson:"_id"`
	OrganizationID string             `bson:"organization_id"`
	Period         Period             `bson:"period"`
	StartDate      time.Time          `bson:"start_date"`
	EndDate        time.Time          `bson:"end_date"`
	TotalBudget    string             `bson:"total_budget"`
	Currency       string             `bson:"currency"`
	Strategy       AllocationStrategy `bson:"strategy"`
	Allocations    []mongoAllocation  `bson:"allocations"`
	Status         CycleStatus        `bson:"status"`
	RolloverFrom   string             `bson:"rollover_from,omitempty"`
	RolloverAmount string             `bson:"rollover_amount"`
	CreatedAt      time.Time          `bson:"created_at"`
	ClosedAt       *time.Time         `bson:"closed_at,omitempty"`
}

func toMongoCycle(c BudgetCycle) mongoCycle {
	allocs := make([]mongoAllocation, len(c.Allocations))
	for i, a := range c.Allocations {
		allocs[i] = mongoAllocation{
			AllocationID: a.AllocationID, CycleID: a.CycleID, AgentID: a.AgentID,
			AmountMinor: a.AmountMinor.String(), Currency: a.Currency, Period: a.Period,
			Strategy: a.Strategy, AllocatedAt: a.AllocatedAt, ExpiresAt: a.ExpiresAt,
		}
	}
	return mongoCycle{
		CycleID: c.CycleID, OrganizationID: c.OrganizationID, Period: c.Period,
		StartDate: c.StartDate, EndDate: c.EndDate, TotalBudget: c.TotalBudget.String(),
		Currency: c.Currency, Strategy: c.Strategy, Allocations: allocs, Status: c.Status,
		RolloverFrom: c.RolloverFrom, RolloverAmount: c.RolloverAmount.String(),
		CreatedAt: c.CreatedAt, ClosedAt: c.ClosedAt,
	}
}

func fromMongoCycle(m mongoCycle) BudgetCycle {
	allocs := make([]BudgetAllocation, len(m.Allocations))
	for i, a := range m.Allocations {
		amount, _ := decimal.NewFromString(a.AmountMinor)
		allocs[i] = BudgetAllocation{
			AllocationID: a.AllocationID, CycleID: a.CycleID, AgentID: a.AgentID,
			AmountMinor: amount, Currency: a.Currency, Period: a.Period,
			Strategy: a.Strategy, AllocatedAt: a.AllocatedAt, ExpiresAt: a.ExpiresAt,
		}
	}
	total, _ := decimal.NewFromString(m.TotalBudget)
	rollover, _ := decimal.NewFromString(m.RolloverAmount)
	return BudgetCycle{
		CycleID: m.CycleID, OrganizationID: m.OrganizationID, Period: m.Period,
		StartDate: m.StartDate, EndDate: m.EndDate, TotalBudget: total,
		Currency: m.Currency, Strategy: m.Strategy, Allocations: allocs, Status: m.Status,
		RolloverFrom: m.RolloverFrom, RolloverAmount: rollover,
		CreatedAt: m.CreatedAt, ClosedAt: m.ClosedAt,
	}
}

type MongoStore struct {
	cycles *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{cycles: client.Database(dbName).Collection("budget_cycles")}
}

func (s *MongoStore) InsertCycle(ctx context.Context, cycle BudgetCycle) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.cycles.InsertOne(ctx, toMongoCycle(cycle))
	return err
}

func (s *MongoStore) UpdateCycle(ctx context.Context, cycle BudgetCycle) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.cycles.ReplaceOne(ctx, bson.M{"_id": cycle.CycleID}, toMongoCycle(cycle), options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetCycle(ctx context.Context, cycleID string) (*BudgetCycle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.cycles.FindOne(ctx, bson.M{"_id": cycleID})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var m mongoCycle
	if err := res.Decode(&m); err != nil {
		return nil, err
	}
	c := fromMongoCycle(m)
	return &c, nil
}

func (s *MongoStore) GetActiveCycle(ctx context.Context, orgID string, asOf time.Time) (*BudgetCycle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res := s.cycles.FindOne(ctx, bson.M{
		"organization_id": orgID, "status": CycleActive,
		"start_date": bson.M{"$lte": asOf}, "end_date": bson.M{"$gte": asOf},
	})
	if res.Err() == mongo.ErrNoDocuments {
		return nil, nil
	}
	if res.Err() != nil {
		return nil, res.Err()
	}
	var m mongoCycle
	if err := res.Decode(&m); err != nil {
		return nil, err
	}
	c := fromMongoCycle(m)
	return &c, nil
}

func (s *MongoStore) ListCycles(ctx context.Context, orgID string, limit int) ([]BudgetCycle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.cycles.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var raws []mongoCycle
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	out := make([]BudgetCycle, len(raws))
	for i, m := range raws {
		out[i] = fromMongoCycle(m)
	}
	return out, nil
}
