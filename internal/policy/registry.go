package policy

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type installedPlugin struct {
	id          string
	plugin      Plugin
	metadata    Metadata
	enabled     bool
	config      map[string]any
	installedAt time.Time
}

// Registry manages installed plugins with serialized mutation (register,
// enable/disable, update_config) and timeout-protected fan-out execution.
type Registry struct {
	mu      sync.Mutex
	plugins map[string]*installedPlugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]*installedPlugin)}
}

// Register initializes and installs a plugin, returning its assigned id.
func (r *Registry) Register(ctx context.Context, plugin Plugin, config map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := plugin.Initialize(ctx, config); err != nil {
		return "", err
	}
	id := "plugin_" + uuid.NewString()
	r.plugins[id] = &installedPlugin{
		id: id, plugin: plugin, metadata: plugin.Metadata(), enabled: true,
		config: config, installedAt: time.Now(),
	}
	return id, nil
}

var errNotFound = pluginNotFoundError{}

type pluginNotFoundError struct{}

func (pluginNotFoundError) Error() string { return "plugin_not_found" }

// Unregister shuts down and removes a plugin.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[id]
	if !ok {
		return errNotFound
	}
	_ = p.plugin.Shutdown(ctx)
	delete(r.plugins, id)
	return nil
}

func (r *Registry) setEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[id]
	if !ok {
		return errNotFound
	}
	p.enabled = enabled
	return nil
}

func (r *Registry) Enable(id string) error  { return r.setEnabled(id, true) }
func (r *Registry) Disable(id string) error { return r.setEnabled(id, false) }

// UpdateConfig re-initializes a plugin with a new configuration.
func (r *Registry) UpdateConfig(ctx context.Context, id string, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[id]
	if !ok {
		return errNotFound
	}
	if err := p.plugin.Initialize(ctx, config); err != nil {
		return err
	}
	p.config = config
	return nil
}

// List returns installed plugins, optionally filtered by type.
func (r *Registry) List(pluginType PluginType) []Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metadata
	for _, p := range r.plugins {
		if pluginType == "" || p.metadata.Type == pluginType {
			out = append(out, p.metadata)
		}
	}
	return out
}

func (r *Registry) enabledByType(t PluginType) []*installedPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*installedPlugin
	for _, p := range r.plugins {
		if p.enabled && p.metadata.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// withTimeout runs fn in a goroutine, returning its result or a timeout
// signal if it exceeds PluginTimeout. A timeout or panic is treated as
// rejection by the caller.
func withTimeout[T any](ctx context.Context, fn func(context.Context) T) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, PluginTimeout)
	defer cancel()

	resultCh := make(chan T, 1)
	go func() {
		defer func() { recover() }()
		resultCh <- fn(ctx)
	}()

	select {
	case res := <-resultCh:
		return res, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// ExecutePolicyPlugins runs every enabled policy plugin against tx and
// returns all decisions; a timeout or panic becomes a rejection decision.
func (r *Registry) ExecutePolicyPlugins(ctx context.Context, tx Transaction) []Decision {
	plugins := r.enabledByType(PluginPolicy)
	decisions := make([]Decision, 0, len(plugins))
	for _, p := range plugins {
		pol := p.plugin.(PolicyPlugin)
		name := p.metadata.Name
		decision, ok := withTimeout(ctx, func(ctx context.Context) Decision {
			return pol.Evaluate(ctx, tx)
		})
		if !ok {
			decision = Decision{Approved: false, Reason: "plugin_timeout", PluginName: name}
		}
		decisions = append(decisions, decision)
	}
	return decisions
}

// ExecuteApprovalPlugins runs approval plugins serially until one approves
// or all reject.
func (r *Registry) ExecuteApprovalPlugins(ctx context.Context, tx Transaction) ApprovalResult {
	plugins := r.enabledByType(PluginApproval)
	if len(plugins) == 0 {
		return ApprovalResult{Approved: false, Reason: "no_approval_plugins_configured", PluginName: "system"}
	}

	var last ApprovalResult
	for _, p := range plugins {
		apr := p.plugin.(ApprovalPlugin)
		name := p.metadata.Name
		result, ok := withTimeout(ctx, func(ctx context.Context) ApprovalResult {
			return apr.RequestApproval(ctx, tx)
		})
		if !ok {
			result = ApprovalResult{Approved: false, Reason: "plugin_timeout", PluginName: name, At: time.Now()}
		}
		if result.Approved {
			return result
		}
		last = result
	}
	return last
}

// ExecuteNotificationPlugins runs all enabled notification plugins
// concurrently; failures are swallowed since notifications are non-fatal.
func (r *Registry) ExecuteNotificationPlugins(ctx context.Context, event map[string]any) {
	plugins := r.enabledByType(PluginNotification)
	var wg sync.WaitGroup
	for _, p := range plugins {
		notif := p.plugin.(NotificationPlugin)
		wg.Add(1)
		go func() {
			defer wg.Done()
			withTimeout(ctx, func(ctx context.Context) struct{} {
				_ = notif.Notify(ctx, event)
				return struct{}{}
			})
		}()
	}
	wg.Wait()
}
