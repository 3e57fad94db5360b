package treasury

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sardis-payments/sardis/internal/canonledger"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	ledger := canonledger.New(canonledger.NewMemoryStore())
	svc := NewService(store, ledger, nil, DefaultTreasuryLimits())
	return svc, store
}

func seedPayment(t *testing.T, store *MemoryStore, orgID, token, bankToken string) {
	t.Helper()
	if err := store.UpsertACHPayment(context.Background(), ACHPaymentRecord{
		OrganizationID: orgID, PaymentToken: token, ExternalBankAccountToken: bankToken,
		Direction: "collection", AmountMinor: 50000, Currency: "USD", Status: PaymentPending,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func webhookBody(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestProcessWebhook_SettlesPaymentAndUpdatesStatus(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seedPayment(t, store, "org_1", "pay_1", "eba_1")

	body := webhookBody(t, map[string]any{
		"event_type": "ach_origination_settled", "payment_token": "pay_1",
		"organization_id": "org_1", "amount": float64(50000),
	})
	if err := svc.ProcessWebhook(ctx, body, ""); err != nil {
		t.Fatalf("process webhook: %v", err)
	}
	p, err := store.GetACHPayment(ctx, "org_1", "pay_1")
	if err != nil || p == nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.Status != PaymentSettled {
		t.Fatalf("status = %s, want settled", p.Status)
	}
}

func TestProcessWebhook_R29PausesExternalBankAccount(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seedPayment(t, store, "org_1", "pay_2", "eba_2")

	body := webhookBody(t, map[string]any{
		"event_type": "ach_return_processed", "payment_token": "pay_2",
		"organization_id": "org_1", "return_reason_code": "R29",
	})
	if err := svc.ProcessWebhook(ctx, body, ""); err != nil {
		t.Fatalf("process webhook: %v", err)
	}
	bank, err := store.GetExternalBankAccount(ctx, "org_1", "eba_2")
	if err != nil || bank == nil {
		t.Fatalf("get bank account: %v", err)
	}
	if !bank.IsPaused {
		t.Fatal("expected external bank account paused on R29")
	}
}

func TestProcessWebhook_R01BumpsRetryCount(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	seedPayment(t, store, "org_1", "pay_3", "eba_3")

	body := webhookBody(t, map[string]any{
		"event_type": "ach_return_initiated", "payment_token": "pay_3",
		"organization_id": "org_1", "return_reason_code": "R01",
	})
	if err := svc.ProcessWebhook(ctx, body, ""); err != nil {
		t.Fatalf("process webhook: %v", err)
	}
	p, err := store.GetACHPayment(ctx, "org_1", "pay_3")
	if err != nil || p == nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", p.RetryCount)
	}
}

func TestProcessWebhook_UnknownPaymentErrors(t *testing.T) {
	svc, _ := newTestService()
	body := webhookBody(t, map[string]any{"event_type": "ach_origination_settled", "payment_token": "missing", "organization_id": "org_1"})
	if err := svc.ProcessWebhook(context.Background(), body, ""); err != ErrPaymentNotFound {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	if !VerifySignature(body, "", "") {
		t.Fatal("empty secret should always verify")
	}
	if VerifySignature(body, "", "secret") {
		t.Fatal("missing signature with a configured secret must fail")
	}
}

func TestEnforceLimits_RejectsOverPerPaymentLimit(t *testing.T) {
	svc, _ := newTestService()
	err := svc.EnforceLimits(context.Background(), "org_1", svc.limits.MaxPerPaymentMinor+1)
	if err == nil {
		t.Fatal("expected per-payment limit error")
	}
}
