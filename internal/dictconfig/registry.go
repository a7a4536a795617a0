// Package dictconfig turns a config.Document into live formatters, filters
// and handlers and attaches them to a logger hierarchy. Components are looked
// up by the class or factory name the document gives them.
package dictconfig

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/format"
	"github.com/olusolaa/hutchlog/internal/handler"
)

// Env carries the process resources handler factories may bind to.
type Env struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Reporter *handler.ErrorReporter
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Reporter == nil {
		e.Reporter = handler.DefaultErrorReporter()
	}
	return e
}

type FormatterFactory func(params map[string]any) (format.Formatter, error)

type FilterFactory func(params map[string]any) (filter.Filter, error)

type HandlerFactory func(env Env, name string, params map[string]any) (handler.Handler, error)

type Registry struct {
	mu         sync.RWMutex
	formatters map[string]FormatterFactory
	filters    map[string]FilterFactory
	handlers   map[string]HandlerFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]FormatterFactory),
		filters:    make(map[string]FilterFactory),
		handlers:   make(map[string]HandlerFactory),
	}
}

// DefaultRegistry returns a registry holding the built-in components.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

func (r *Registry) RegisterFormatter(name string, factory FormatterFactory) error {
	if factory == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil formatter factory")
	}
	if name == "" {
		return errors.New(errors.CodeInternal, "formatter factory name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; exists {
		return errors.Newf(errors.CodeInternal, "formatter factory '%s' already registered", name)
	}
	r.formatters[name] = factory
	return nil
}

func (r *Registry) Formatter(name string) (FormatterFactory, error) {
	if name == "" {
		name = DefaultFormatterFactory
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.formatters[name]
	if !exists {
		return nil, errors.NewUserFacing(errors.CodeUnknownFactory, "formatter factory '"+name+"' not found", "Known factories: "+joinKeys(r.formatters))
	}
	return factory, nil
}

func (r *Registry) RegisterFilter(name string, factory FilterFactory) error {
	if factory == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil filter factory")
	}
	if name == "" {
		return errors.New(errors.CodeInternal, "filter factory name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.filters[name]; exists {
		return errors.Newf(errors.CodeInternal, "filter factory '%s' already registered", name)
	}
	r.filters[name] = factory
	return nil
}

func (r *Registry) Filter(name string) (FilterFactory, error) {
	if name == "" {
		name = DefaultFilterFactory
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.filters[name]
	if !exists {
		return nil, errors.NewUserFacing(errors.CodeUnknownFactory, "filter factory '"+name+"' not found", "Known factories: "+joinKeys(r.filters))
	}
	return factory, nil
}

func (r *Registry) RegisterHandler(class string, factory HandlerFactory) error {
	if factory == nil {
		return errors.New(errors.CodeInternal, "attempted to register nil handler factory")
	}
	if class == "" {
		return errors.New(errors.CodeInternal, "handler class cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[class]; exists {
		return errors.Newf(errors.CodeInternal, "handler class '%s' already registered", class)
	}
	r.handlers[class] = factory
	return nil
}

func (r *Registry) Handler(class string) (HandlerFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.handlers[class]
	if !exists {
		return nil, errors.NewUserFacing(errors.CodeUnknownFactory, "handler class '"+class+"' not found", "Known classes: "+joinKeys(r.handlers))
	}
	return factory, nil
}

func joinKeys[V any](m map[string]V) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
