package action

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the table of known action descriptions keyed by full name.
type Registry struct {
	env    Environment
	logger zerolog.Logger

	mu           sync.RWMutex
	namespaces   map[string]struct{}
	descriptions map[string]Description
}

// NewRegistry constructs an empty registry whose actions are built against env.
func NewRegistry(env Environment) *Registry {
	return &Registry{
		env:          env,
		logger:       env.Logger.With().Str("component", "action_registry").Logger(),
		namespaces:   make(map[string]struct{}),
		descriptions: make(map[string]Description),
	}
}

// NewDefaultRegistry registers every built-in provider.
func NewDefaultRegistry(env Environment) (*Registry, error) {
	registry := NewRegistry(env)
	providers := []Provider{
		ExternalProvider{},
		JavaProvider{},
		DockerProvider{},
		ReplProvider{},
		FilesProvider{},
		PrintProvider{},
	}
	for _, p := range providers {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds every description of the provider. A namespace may only be registered once.
func (r *Registry) Register(provider Provider) error {
	namespace := provider.Namespace()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.namespaces[namespace]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNamespace, namespace)
	}

	for _, desc := range provider.Descriptions() {
		desc.Namespace = namespace
		r.descriptions[desc.FullName()] = desc
	}
	r.namespaces[namespace] = struct{}{}

	r.logger.Debug().Str("namespace", namespace).Int("actions", len(provider.Descriptions())).Msg("registered action provider")
	return nil
}

// Describe lists the descriptions of namespace, or of every namespace when it is empty,
// sorted by full name.
func (r *Registry) Describe(namespace string) []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Description, 0, len(r.descriptions))
	for _, desc := range r.descriptions {
		if namespace == "" || desc.Namespace == namespace {
			out = append(out, desc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// Lookup finds a description by namespace:name.
func (r *Registry) Lookup(fullName string) (Description, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptions[strings.TrimSpace(fullName)]
	if !ok {
		return Description{}, fmt.Errorf("%w: %s", ErrUnknownAction, fullName)
	}
	return desc, nil
}

// Bind checks that every required property is present and builds the action.
// Optional properties may be absent. Mode compatibility is not checked here.
func (r *Registry) Bind(desc Description, bindings map[string]string) (Action, error) {
	var missing []string
	for _, key := range desc.RequiredKeys() {
		if _, ok := bindings[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &BindingError{Action: desc.FullName(), Missing: missing}
	}
	if desc.factory == nil {
		return nil, fmt.Errorf("%w: %s has no factory", ErrUnknownAction, desc.FullName())
	}

	env := r.env
	env.Logger = r.env.Logger.With().Str("action", desc.FullName()).Logger()
	return desc.factory(env, NewValues(bindings))
}
