package plugin

import (
	"fmt"
	"sort"

	"github.com/jcfangc/yahoo-crawler/internal/domain"
)

// Ordering policies accepted by Build.
const (
	OrderDeclared = "declared"
	OrderPriority = "priority"
)

// Settings configures one registered plugin.
type Settings struct {
	// Enabled defaults to true when nil.
	Enabled *bool

	// Priority orders plugins under OrderPriority, lower first.
	Priority int
}

// Registry holds registered interaction plugins in declaration order.
type Registry struct {
	plugins []domain.Plugin
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a plugin to the end of the registry.
func (r *Registry) Register(p domain.Plugin) {
	r.plugins = append(r.plugins, p)
}

// Lookup returns the plugin registered under name, or nil.
func (r *Registry) Lookup(name string) domain.Plugin {
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []domain.Plugin {
	return r.plugins
}

// Build returns the enabled plugins ordered by policy. Settings naming an
// unregistered plugin are rejected.
func (r *Registry) Build(settings map[string]Settings, order string) ([]domain.Plugin, error) {
	for name := range settings {
		if r.Lookup(name) == nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPlugin, name)
		}
	}
	if order == "" {
		order = OrderDeclared
	}
	if order != OrderDeclared && order != OrderPriority {
		return nil, fmt.Errorf("unknown plugin order %q", order)
	}

	var enabled []domain.Plugin
	for _, p := range r.plugins {
		if s, ok := settings[p.Name()]; ok && s.Enabled != nil && !*s.Enabled {
			continue
		}
		enabled = append(enabled, p)
	}

	if order == OrderPriority {
		sort.SliceStable(enabled, func(i, j int) bool {
			return settings[enabled[i].Name()].Priority < settings[enabled[j].Name()].Priority
		})
	}
	return enabled, nil
}
