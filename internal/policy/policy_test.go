package policy

import (
	"context"
	"testing"
	"time"
)

type fakePolicyPlugin struct {
	name    string
	delay   time.Duration
	decide  Decision
	panics  bool
}

func (f *fakePolicyPlugin) Metadata() Metadata {
	return Metadata{Name: f.name, Type: PluginPolicy}
}
func (f *fakePolicyPlugin) Initialize(ctx context.Context, config map[string]any) error {
	return nil
}
func (f *fakePolicyPlugin) Shutdown(ctx context.Context) error { return nil }
func (f *fakePolicyPlugin) Evaluate(ctx context.Context, tx Transaction) Decision {
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.decide
}

type fakeApprovalPlugin struct {
	name   string
	result ApprovalResult
}

func (f *fakeApprovalPlugin) Metadata() Metadata { return Metadata{Name: f.name, Type: PluginApproval} }
func (f *fakeApprovalPlugin) Initialize(ctx context.Context, config map[string]any) error {
	return nil
}
func (f *fakeApprovalPlugin) Shutdown(ctx context.Context) error { return nil }
func (f *fakeApprovalPlugin) RequestApproval(ctx context.Context, tx Transaction) ApprovalResult {
	return f.result
}

func TestRegistry_RegisterAndList(t *testing.T) {
	reg := NewRegistry()
	id, err := reg.Register(context.Background(), &fakePolicyPlugin{name: "p1", decide: Decision{Approved: true}}, nil)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}
	list := reg.List(PluginPolicy)
	if len(list) != 1 || list[0].Name != "p1" {
		t.Fatalf("List() = %+v", list)
	}
}

func TestRegistry_DisablePluginExcludesFromExecution(t *testing.T) {
	reg := NewRegistry()
	id, _ := reg.Register(context.Background(), &fakePolicyPlugin{name: "p1", decide: Decision{Approved: false}}, nil)
	if err := reg.Disable(id); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}
	decisions := reg.ExecutePolicyPlugins(context.Background(), Transaction{})
	if len(decisions) != 0 {
		t.Fatalf("expected no decisions from disabled plugin, got %+v", decisions)
	}
}

func TestRegistry_ExecutePolicyPlugins_TimeoutTreatedAsRejection(t *testing.T) {
	reg := NewRegistry()
	slow := &fakePolicyPlugin{name: "slow", delay: PluginTimeout + 500*time.Millisecond, decide: Decision{Approved: true}}
	reg.Register(context.Background(), slow, nil)

	start := time.Now()
	decisions := reg.ExecutePolicyPlugins(context.Background(), Transaction{})
	elapsed := time.Since(start)

	if len(decisions) != 1 || decisions[0].Approved {
		t.Fatalf("expected a single rejected decision, got %+v", decisions)
	}
	if elapsed > PluginTimeout+2*time.Second {
		t.Fatalf("expected execution to be bounded by plugin timeout, took %v", elapsed)
	}
}

func TestRegistry_ExecutePolicyPlugins_PanicTreatedAsRejection(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), &fakePolicyPlugin{name: "panicky", panics: true}, nil)
	decisions := reg.ExecutePolicyPlugins(context.Background(), Transaction{})
	if len(decisions) != 1 || decisions[0].Approved {
		t.Fatalf("expected rejection on panic, got %+v", decisions)
	}
}

func TestRegistry_ExecuteApprovalPlugins_FirstApprovalWins(t *testing.T) {
	reg := NewRegistry()
	reg.Register(context.Background(), &fakeApprovalPlugin{name: "reject1", result: ApprovalResult{Approved: false}}, nil)
	reg.Register(context.Background(), &fakeApprovalPlugin{name: "approve1", result: ApprovalResult{Approved: true, Approver: "ops"}}, nil)

	result := reg.ExecuteApprovalPlugins(context.Background(), Transaction{})
	if !result.Approved {
		t.Fatalf("expected an approval to win, got %+v", result)
	}
}

func TestRegistry_ExecuteApprovalPlugins_NoPluginsRejects(t *testing.T) {
	reg := NewRegistry()
	result := reg.ExecuteApprovalPlugins(context.Background(), Transaction{})
	if result.Approved || result.Reason != "no_approval_plugins_configured" {
		t.Fatalf("expected default rejection, got %+v", result)
	}
}

func TestRuleSetPlugin_AmountLimitRejectsOverMax(t *testing.T) {
	plugin := NewRuleSetPlugin([]Rule{
		{Type: RuleAmountLimit, Config: map[string]any{"max_amount_minor": int64(10000)}},
	})
	decision := plugin.Evaluate(context.Background(), Transaction{"amount_minor": int64(20000)})
	if decision.Approved {
		t.Fatal("expected rejection for over-limit amount")
	}
}

func TestRuleSetPlugin_MerchantBlocklistRejectsMatch(t *testing.T) {
	plugin := NewRuleSetPlugin([]Rule{
		{Type: RuleMerchantBlocklist, Config: map[string]any{"blocked_merchants": []string{"shady-casino"}}},
	})
	decision := plugin.Evaluate(context.Background(), Transaction{"merchant": "Shady-Casino.example"})
	if decision.Approved {
		t.Fatal("expected rejection for blocked merchant")
	}
}

func TestRuleSetPlugin_VelocityLimitRejectsOverCount(t *testing.T) {
	plugin := NewRuleSetPlugin([]Rule{
		{Type: RuleVelocityLimit, Config: map[string]any{"max_transactions": 2, "time_window_minutes": 60}},
	})
	ctx := context.Background()
	tx := Transaction{"merchant": "openai.com"}
	if d := plugin.Evaluate(ctx, tx); !d.Approved {
		t.Fatalf("expected 1st transaction approved: %+v", d)
	}
	if d := plugin.Evaluate(ctx, tx); !d.Approved {
		t.Fatalf("expected 2nd transaction approved: %+v", d)
	}
	if d := plugin.Evaluate(ctx, tx); d.Approved {
		t.Fatal("expected 3rd transaction to be rejected by velocity limit")
	}
}

func TestRuleSetPlugin_AllRulesPassApproves(t *testing.T) {
	plugin := NewRuleSetPlugin([]Rule{
		{Type: RuleAmountLimit, Config: map[string]any{"max_amount_minor": int64(100000)}},
	})
	decision := plugin.Evaluate(context.Background(), Transaction{"amount_minor": int64(500)})
	if !decision.Approved {
		t.Fatalf("expected approval, got %+v", decision)
	}
}
