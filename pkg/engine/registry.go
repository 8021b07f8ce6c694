package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/polisai/polis-dag/pkg/domain"
	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

// RunnerSpec is a registered runner plus its metadata.
type RunnerSpec struct {
	// Type is the canonical key: kind, or kind@version.
	Type        string
	Runner      runtime.NodeRunner
	Schema      *runtime.Schema
	Description string
	Aliases     []string
}

// RegisterOption customises a registration.
type RegisterOption func(*RunnerSpec)

// WithAliases registers alternate type names that resolve to the runner.
func WithAliases(aliases ...string) RegisterOption {
	return func(s *RunnerSpec) {
		s.Aliases = append(s.Aliases, aliases...)
	}
}

// WithSchema attaches a config schema checked before the node's first attempt.
func WithSchema(schema *runtime.Schema) RegisterOption {
	return func(s *RunnerSpec) {
		s.Schema = schema
	}
}

// WithDescription sets the human-readable description.
func WithDescription(description string) RegisterOption {
	return func(s *RunnerSpec) {
		s.Description = description
	}
}

// Registry maps node types to runners. Registrations normally happen once at
// start-up; lookups are safe for concurrent runs.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]*RunnerSpec
	aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]*RunnerSpec),
		aliases: make(map[string]string),
	}
}

// Register stores runner under nodeType, replacing any previous registration
// of that type. A versioned type ("kind@v2") also becomes the default for the
// bare kind unless another version claimed it first.
func (r *Registry) Register(nodeType string, runner runtime.NodeRunner, opts ...RegisterOption) {
	kind, version := parseNodeType(nodeType)
	canonical := canonicalKey(kind, version)

	spec := &RunnerSpec{Type: canonical, Runner: runner}
	for _, opt := range opts {
		opt(spec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runners[canonical] = spec
	for _, alias := range spec.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		r.aliases[alias] = canonical
	}
	if version != "" {
		if _, exists := r.aliases[kind]; !exists {
			r.aliases[kind] = canonical
		}
	}
}

// RegisterFunc registers a function runner.
func (r *Registry) RegisterFunc(nodeType string, fn runtime.RunnerFunc, opts ...RegisterOption) {
	r.Register(nodeType, fn, opts...)
}

// Lookup returns the runner registered for nodeType.
func (r *Registry) Lookup(nodeType string) (runtime.NodeRunner, error) {
	spec, err := r.Resolve(nodeType)
	if err != nil {
		return nil, err
	}
	return spec.Runner, nil
}

// Resolve returns the full registration for nodeType, following aliases and
// the kind@version convention.
func (r *Registry) Resolve(nodeType string) (RunnerSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kind, version := parseNodeType(nodeType)
	canonical := canonicalKey(kind, version)
	if spec, ok := r.runners[canonical]; ok {
		return *spec, nil
	}
	if alias, ok := r.aliases[strings.TrimSpace(nodeType)]; ok {
		if spec, ok := r.runners[alias]; ok {
			return *spec, nil
		}
	}
	if version == "" {
		if alias, ok := r.aliases[kind]; ok {
			if spec, ok := r.runners[alias]; ok {
				return *spec, nil
			}
		}
	}
	return RunnerSpec{}, &domain.UnknownNodeTypeError{Type: nodeType}
}

// Specs returns every registration sorted by type.
func (r *Registry) Specs() []RunnerSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]RunnerSpec, 0, len(r.runners))
	for _, spec := range r.runners {
		specs = append(specs, *spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}

// Types returns the canonical registered types, sorted.
func (r *Registry) Types() []string {
	specs := r.Specs()
	types := make([]string, len(specs))
	for i, spec := range specs {
		types[i] = spec.Type
	}
	return types
}

func parseNodeType(raw string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(raw), "@", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func canonicalKey(kind, version string) string {
	kind = strings.TrimSpace(kind)
	version = strings.TrimSpace(version)
	if version == "" {
		return kind
	}
	return kind + "@" + version
}
