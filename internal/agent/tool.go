package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Param documents one string argument of a tool for the model.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Tool is a named capability the model may call mid-conversation. Arguments
// and result are plain text.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Call(ctx context.Context, args map[string]string) (string, error)
}

// Registry holds the tools of one agent by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Name() == "" {
		return fmt.Errorf("tool without name")
	}
	if _, ok := r.tools[t.Name()]; ok {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tools in name order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Invoke calls the named tool after checking required arguments.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	for _, p := range t.Params() {
		if p.Required && args[p.Name] == "" {
			return "", fmt.Errorf("tool %q: missing argument %q", name, p.Name)
		}
	}
	return t.Call(ctx, args)
}
