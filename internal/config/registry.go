package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/phonoscore/pkg/provider/llm"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

// ErrProviderNotRegistered is returned when a [ProviderEntry] names a
// provider without a registered factory.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type T from its configuration entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is a name-keyed factory table for one provider kind.
type factories[T any] struct {
	kind   string
	byName map[string]Factory[T]
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, byName: make(map[string]Factory[T])}
}

func (f factories[T]) create(entry ProviderEntry) (T, error) {
	build, ok := f.byName[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return build(entry)
}

// Registry resolves [ProviderEntry] names to analyzer LLM and phoneme
// recognizer constructors. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	llm        factories[llm.Provider]
	recognizer factories[recognizer.Provider]
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:        newFactories[llm.Provider]("llm"),
		recognizer: newFactories[recognizer.Provider]("recognizer"),
	}
}

// RegisterLLM registers an LLM factory under name, replacing any previous one.
func (r *Registry) RegisterLLM(name string, factory Factory[llm.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm.byName[name] = factory
}

// RegisterRecognizer registers a recognizer factory under name, replacing any
// previous one.
func (r *Registry) RegisterRecognizer(name string, factory Factory[recognizer.Provider]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizer.byName[name] = factory
}

// CreateLLM builds the LLM provider named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateRecognizer builds the recognizer named by entry.Name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (recognizer.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recognizer.create(entry)
}
