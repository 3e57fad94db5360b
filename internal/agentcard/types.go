package agentcard

import "time"

// AgentCard is the A2A discovery document an agent's HTTP endpoint
// publishes at the well-known path, per
// https://google.github.io/A2A/specification/. The platform resolves it
// to cross-check a counterparty's declared skills before extending trust.
type AgentCard struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	URL                string          `json:"url"`
	Provider           *Provider       `json:"provider,omitempty"`
	Version            string          `json:"version"`
	DocumentationURL   string          `json:"documentationUrl,omitempty"`
	Capabilities       Capabilities    `json:"capabilities"`
	Authentication     *Authentication `json:"authentication,omitempty"`
	DefaultInputModes  []string        `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string        `json:"defaultOutputModes,omitempty"`
	Skills             []Skill         `json:"skills"`
}

// Provider identifies the organization operating the agent.
type Provider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// Capabilities advertises transport-level features the agent supports.
type Capabilities struct {
	Streaming              bool `json:"streaming,omitempty"`
	PushNotifications      bool `json:"pushNotifications,omitempty"`
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`
}

// Authentication describes how a caller authenticates to the agent.
type Authentication struct {
	Schemes     []string `json:"schemes"`
	Credentials string   `json:"credentials,omitempty"`
}

// Skill is one capability the agent declares it can perform, keyed by ID
// so a TrustAttestation can reference the declared set compactly.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// ResolvedAgentCard is a fetched AgentCard plus the provenance and
// cache-validity metadata the resolver attaches.
type ResolvedAgentCard struct {
	AgentCard
	SourceURL  string    `json:"source_url"`
	ResolvedAt time.Time `json:"resolved_at"`
	ValidUntil time.Time `json:"valid_until"`
}

// DeclaredCapabilityIDs returns the skill IDs the card advertises, the
// form internal/identity.AttestCapabilitiesFromAgentCard claims against.
func (c *ResolvedAgentCard) DeclaredCapabilityIDs() []string {
	ids := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		ids = append(ids, s.ID)
	}
	return ids
}
