package agentcard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolver_Resolve(t *testing.T) {
	agentCard := AgentCard{
		Name:        "Invoice Reconciliation Agent",
		Description: "An agent that reconciles invoices against settlement events",
		URL:         "https://example.com/agent",
		Version:     "1.0.0",
		Provider: &Provider{
			Organization: "Acme Treasury Ops",
			URL:          "https://acme.example.com",
		},
		Capabilities: Capabilities{
			Streaming: true,
		},
		Skills: []Skill{
			{
				ID:          "invoice_match",
				Name:        "Invoice Matching",
				Description: "Match settled events against open invoices",
				Tags:        []string{"treasury", "reconciliation"},
			},
			{
				ID:          "dispute_triage",
				Name:        "Dispute Triage",
				Description: "Classify reconciliation breaks",
				Tags:        []string{"treasury", "disputes"},
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/agent-card.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(agentCard)
	}))
	defer server.Close()

	resolver := NewResolver(WithCacheTTL(1 * time.Minute))

	card, err := resolver.Resolve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if card.Name != "Invoice Reconciliation Agent" {
		t.Errorf("expected name 'Invoice Reconciliation Agent', got %q", card.Name)
	}
	if len(card.Skills) != 2 {
		t.Errorf("expected 2 skills, got %d", len(card.Skills))
	}
	if got := card.DeclaredCapabilityIDs(); len(got) != 2 || got[0] != "invoice_match" {
		t.Errorf("unexpected declared capability ids: %v", got)
	}
}

func TestResolver_ResolveWithCache(t *testing.T) {
	callCount := 0
	agentCard := AgentCard{
		Name:    "Cached Agent",
		URL:     "https://example.com/agent",
		Version: "1.0.0",
		Skills: []Skill{
			{ID: "skill1", Name: "Skill 1"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(agentCard)
	}))
	defer server.Close()

	resolver := NewResolver(WithCacheTTL(1 * time.Hour))

	if _, err := resolver.Resolve(context.Background(), server.URL); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 server call, got %d", callCount)
	}

	if _, err := resolver.Resolve(context.Background(), server.URL); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected still 1 server call (cache hit), got %d", callCount)
	}
}

func TestResolver_Validate(t *testing.T) {
	resolver := NewResolver()

	tests := []struct {
		name    string
		card    AgentCard
		wantErr bool
	}{
		{
			name: "valid card",
			card: AgentCard{
				Name:    "Agent",
				URL:     "https://example.com",
				Version: "1.0.0",
				Skills: []Skill{
					{ID: "skill1", Name: "Skill 1"},
				},
			},
			wantErr: false,
		},
		{
			name: "missing name",
			card: AgentCard{
				URL:     "https://example.com",
				Version: "1.0.0",
				Skills: []Skill{
					{ID: "skill1", Name: "Skill 1"},
				},
			},
			wantErr: true,
		},
		{
			name: "missing url",
			card: AgentCard{
				Name:    "Agent",
				Version: "1.0.0",
				Skills: []Skill{
					{ID: "skill1", Name: "Skill 1"},
				},
			},
			wantErr: true,
		},
		{
			name: "no skills",
			card: AgentCard{
				Name:    "Agent",
				URL:     "https://example.com",
				Version: "1.0.0",
				Skills:  []Skill{},
			},
			wantErr: true,
		},
		{
			name: "skill missing id",
			card: AgentCard{
				Name:    "Agent",
				URL:     "https://example.com",
				Version: "1.0.0",
				Skills: []Skill{
					{Name: "Skill 1"},
				},
			},
			wantErr: true,
		},
		{
			name: "skill missing name",
			card: AgentCard{
				Name:    "Agent",
				URL:     "https://example.com",
				Version: "1.0.0",
				Skills: []Skill{
					{ID: "skill1"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolver.Validate(&tt.card)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolver_InvalidateCache(t *testing.T) {
	callCount := 0
	agentCard := AgentCard{
		Name:    "Agent",
		URL:     "https://example.com/agent",
		Version: "1.0.0",
		Skills: []Skill{
			{ID: "skill1", Name: "Skill 1"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(agentCard)
	}))
	defer server.Close()

	resolver := NewResolver(WithCacheTTL(1 * time.Hour))

	_, _ = resolver.Resolve(context.Background(), server.URL)
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	resolver.InvalidateCache(server.URL)

	_, _ = resolver.Resolve(context.Background(), server.URL)
	if callCount != 2 {
		t.Errorf("expected 2 calls after cache invalidation, got %d", callCount)
	}
}

func TestResolver_BuildAgentCardURL(t *testing.T) {
	resolver := NewResolver()

	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{
			input:    "https://example.com",
			expected: "https://example.com/.well-known/agent-card.json",
			wantErr:  false,
		},
		{
			input:    "https://example.com/",
			expected: "https://example.com/.well-known/agent-card.json",
			wantErr:  false,
		},
		{
			input:    "https://example.com/agents/legal",
			expected: "https://example.com/agents/legal/.well-known/agent-card.json",
			wantErr:  false,
		},
		{
			input:    "example.com",
			expected: "https://example.com/.well-known/agent-card.json",
			wantErr:  false,
		},
		{
			input:    "https://example.com/.well-known/agent-card.json",
			expected: "https://example.com/.well-known/agent-card.json",
			wantErr:  false,
		},
		{
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := resolver.buildAgentCardURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("buildAgentCardURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("buildAgentCardURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
