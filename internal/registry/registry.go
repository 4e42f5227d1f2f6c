package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/dago-node-prompt/pkg/prompt"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no template is registered or stored under a name
var ErrNotFound = errors.New("prompt template not found")

// Store loads manifests that are not registered locally
type Store interface {
	Load(ctx context.Context, name string) (*Manifest, error)
}

// Registry holds compiled prompt templates by name
type Registry struct {
	env       *prompt.Environment
	store     Store
	logger    *zap.Logger
	templates map[string]*prompt.Template
	mu        sync.RWMutex
}

// New creates a registry. store may be nil.
func New(env *prompt.Environment, store Store, logger *zap.Logger) *Registry {
	if env == nil {
		env = prompt.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		env:       env,
		store:     store,
		logger:    logger,
		templates: make(map[string]*prompt.Template),
	}
}

// Register compiles a manifest and stores it under its name, replacing any previous template
func (r *Registry) Register(m *Manifest) (*prompt.Template, error) {
	if m.Name == "" {
		return nil, fmt.Errorf("manifest name is required")
	}

	decl, err := m.Declaration()
	if err != nil {
		return nil, err
	}

	tmpl, err := r.env.Prompt(decl)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.templates[m.Name] = tmpl
	r.mu.Unlock()

	r.logger.Debug("registered prompt template",
		zap.String("name", m.Name),
		zap.String("signature", tmpl.Signature().String()),
	)

	return tmpl, nil
}

// Load registers every manifest, stopping at the first error
func (r *Registry) Load(manifests []*Manifest) error {
	for _, m := range manifests {
		if _, err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the template registered under name. On a miss the store is
// consulted and the result compiled and kept.
func (r *Registry) Get(ctx context.Context, name string) (*prompt.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	m, err := r.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = name
	}

	r.logger.Info("loaded prompt template from store", zap.String("name", name))

	return r.Register(m)
}

// Forget drops a compiled template so the next Get reloads it from the store
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.templates, name)
}

// Names returns the sorted names of the registered templates
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
