package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry holds the models known to the mapper, keyed by measurement name
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	logger zerolog.Logger
}

// NewRegistry creates an empty model registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		models: make(map[string]*Model),
		logger: logger.With().Str("component", "model-registry").Logger(),
	}
}

// Register adds a model. Registering the same name twice is an error.
func (r *Registry) Register(model *Model) error {
	if model == nil {
		return fmt.Errorf("cannot register nil model")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[model.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrModelExists, model.Name())
	}
	r.models[model.Name()] = model

	r.logger.Debug().
		Str("model", model.Name()).
		Int("columns", model.NumColumns()).
		Int("promotions", len(model.promotions)).
		Msg("Model registered")

	return nil
}

// Get returns the model registered under name
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	model, ok := r.models[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return model, nil
}

// Names returns the registered model names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of registered models
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}
