package plugin

import "fmt"

// Registry holds the plugins compiled into this binary, keyed by name. The
// project file selects which of them activate for a build.
type Registry struct {
	plugins map[string]Plugin
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. Registering nil or a duplicate name is an error.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin has no name")
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("plugin %s already registered", name)
	}
	r.plugins[name] = p
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (Plugin, error) {
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("plugin %s not found", name)
	}
	return p, nil
}

// Select resolves the named plugins in registration order. Unknown names are
// an error so a typo in the project file fails fast.
func (r *Registry) Select(names []string) ([]Plugin, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.plugins[n]; !ok {
			return nil, fmt.Errorf("plugin %s not found", n)
		}
		want[n] = true
	}
	out := make([]Plugin, 0, len(names))
	for _, n := range r.order {
		if want[n] {
			out = append(out, r.plugins[n])
		}
	}
	return out, nil
}

// List returns all registered plugin names in registration order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}
