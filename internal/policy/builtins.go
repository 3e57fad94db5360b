package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// RuleType names a built-in rule kind evaluated by RuleSetPlugin.
type RuleType string

const (
	RuleTimeRestriction  RuleType = "time_restriction"
	RuleAmountLimit      RuleType = "amount_limit"
	RuleMerchantBlocklist RuleType = "merchant_blocklist"
	RuleVelocityLimit    RuleType = "velocity_limit"
)

// Rule is one declarative rule in a RuleSetPlugin's configuration.
type Rule struct {
	Type   RuleType
	Config map[string]any
}

// RuleSetPlugin evaluates a fixed list of declarative rules (time
// restriction, amount bounds, merchant/category blocklist, velocity
// limits) against every transaction, rejecting on the first rule that
// fails.
type RuleSetPlugin struct {
	rules []Rule

	mu      sync.Mutex
	history []transactionRecord
}

type transactionRecord struct {
	merchant  string
	timestamp time.Time
}

func NewRuleSetPlugin(rules []Rule) *RuleSetPlugin {
	return &RuleSetPlugin{rules: rules}
}

func (p *RuleSetPlugin) Metadata() Metadata {
	return Metadata{
		Name: "rule-set-policy", Version: "1.0.0", Author: "sardis",
		Description: "evaluate declarative policy rules against a transaction", Type: PluginPolicy,
	}
}

func (p *RuleSetPlugin) Initialize(ctx context.Context, config map[string]any) error {
	_ = ctx
	_ = config
	return nil
}

func (p *RuleSetPlugin) Shutdown(ctx context.Context) error { _ = ctx; return nil }

func (p *RuleSetPlugin) Evaluate(ctx context.Context, tx Transaction) Decision {
	_ = ctx
	for _, rule := range p.rules {
		decision := p.evaluateRule(rule, tx)
		if !decision.Approved {
			return decision
		}
	}
	return Decision{Approved: true, Reason: "all policy rules passed", PluginName: p.Metadata().Name}
}

func (p *RuleSetPlugin) evaluateRule(rule Rule, tx Transaction) Decision {
	name := p.Metadata().Name
	switch rule.Type {
	case RuleTimeRestriction:
		return evaluateTimeRestriction(rule.Config, name, time.Now().UTC())
	case RuleAmountLimit:
		return evaluateAmountLimit(rule.Config, tx, name)
	case RuleMerchantBlocklist:
		return evaluateMerchantBlocklist(rule.Config, tx, name)
	case RuleVelocityLimit:
		return p.evaluateVelocityLimit(rule.Config, tx, name, time.Now().UTC())
	default:
		return Decision{Approved: false, Reason: fmt.Sprintf("unknown rule type: %s", rule.Type), PluginName: name}
	}
}

func evaluateTimeRestriction(cfg map[string]any, pluginName string, now time.Time) Decision {
	if b, _ := cfg["no_weekends"].(bool); b {
		if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
			return Decision{Approved: false, Reason: "transactions not allowed on weekends", PluginName: pluginName}
		}
	}
	if allowedDays, ok := cfg["allowed_days"].([]int); ok {
		found := false
		weekday := int(now.Weekday())
		for _, d := range allowedDays {
			if d == weekday {
				found = true
				break
			}
		}
		if !found {
			return Decision{Approved: false, Reason: fmt.Sprintf("transactions not allowed on %s", now.Weekday()), PluginName: pluginName}
		}
	}
	if b, _ := cfg["business_hours_only"].(bool); b {
		hour := now.Hour()
		if hour < 9 || hour >= 17 {
			return Decision{Approved: false, Reason: "transactions only allowed during business hours (9am-5pm UTC)", PluginName: pluginName}
		}
	}
	if allowedHours, ok := cfg["allowed_hours"].(map[string]any); ok {
		start, _ := allowedHours["start"].(int)
		end, _ := allowedHours["end"].(int)
		if end == 0 {
			end = 23
		}
		hour := now.Hour()
		if hour < start || hour > end {
			return Decision{Approved: false, Reason: fmt.Sprintf("transactions only allowed between %d:00 and %d:00 UTC", start, end), PluginName: pluginName}
		}
	}
	return Decision{Approved: true, Reason: "time restriction passed", PluginName: pluginName}
}

func evaluateAmountLimit(cfg map[string]any, tx Transaction, pluginName string) Decision {
	amount, _ := tx["amount_minor"].(int64)
	if maxAmount, ok := cfg["max_amount_minor"].(int64); ok && amount > maxAmount {
		return Decision{Approved: false, Reason: fmt.Sprintf("amount %d exceeds maximum %d", amount, maxAmount), PluginName: pluginName}
	}
	if minAmount, ok := cfg["min_amount_minor"].(int64); ok && amount < minAmount {
		return Decision{Approved: false, Reason: fmt.Sprintf("amount %d below minimum %d", amount, minAmount), PluginName: pluginName}
	}
	return Decision{Approved: true, Reason: "amount limit passed", PluginName: pluginName}
}

func evaluateMerchantBlocklist(cfg map[string]any, tx Transaction, pluginName string) Decision {
	merchant, _ := tx["merchant"].(string)
	merchantLower := strings.ToLower(merchant)

	if blocked, ok := cfg["blocked_merchants"].([]string); ok {
		for _, b := range blocked {
			if strings.Contains(merchantLower, strings.ToLower(b)) {
				return Decision{Approved: false, Reason: fmt.Sprintf("merchant %q is blocked", merchant), PluginName: pluginName}
			}
		}
	}

	category, _ := tx["merchant_category"].(string)
	if blockedCategories, ok := cfg["blocked_categories"].([]string); ok && category != "" {
		for _, c := range blockedCategories {
			if c == category {
				return Decision{Approved: false, Reason: fmt.Sprintf("merchant category %q is blocked", category), PluginName: pluginName}
			}
		}
	}

	return Decision{Approved: true, Reason: "merchant blocklist passed", PluginName: pluginName}
}

func (p *RuleSetPlugin) evaluateVelocityLimit(cfg map[string]any, tx Transaction, pluginName string, now time.Time) Decision {
	maxTransactions, _ := cfg["max_transactions"].(int)
	if maxTransactions == 0 {
		maxTransactions = 10
	}
	windowMinutes, _ := cfg["time_window_minutes"].(int)
	if windowMinutes == 0 {
		windowMinutes = 60
	}
	perMerchant, _ := cfg["per_merchant"].(bool)
	merchant, _ := tx["merchant"].(string)

	p.mu.Lock()
	defer p.mu.Unlock()

	windowStart := now.Add(-time.Duration(windowMinutes) * time.Minute)
	var recent []transactionRecord
	for _, r := range p.history {
		if !r.timestamp.Before(windowStart) {
			recent = append(recent, r)
		}
	}
	p.history = recent

	count := 0
	for _, r := range recent {
		if !perMerchant || r.merchant == merchant {
			count++
		}
	}

	if count >= maxTransactions {
		scope := "globally"
		if perMerchant {
			scope = fmt.Sprintf("for merchant %s", merchant)
		}
		return Decision{
			Approved: false,
			Reason:   fmt.Sprintf("velocity limit exceeded: %d transactions in %d minutes %s", count, windowMinutes, scope),
			PluginName: pluginName,
		}
	}

	p.history = append(p.history, transactionRecord{merchant: merchant, timestamp: now})
	return Decision{Approved: true, Reason: "velocity limit passed", PluginName: pluginName}
}
