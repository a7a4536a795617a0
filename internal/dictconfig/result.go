package dictconfig

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/format"
	"github.com/olusolaa/hutchlog/internal/handler"
)

// Result holds the components built from a document, by document name.
type Result struct {
	Formatters map[string]format.Formatter
	Filters    map[string]filter.Filter
	Handlers   map[string]handler.Handler

	closeOnce sync.Once
	closeErr  error
}

func newResult() *Result {
	return &Result{
		Formatters: make(map[string]format.Formatter),
		Filters:    make(map[string]filter.Filter),
		Handlers:   make(map[string]handler.Handler),
	}
}

func (r *Result) Handler(name string) (handler.Handler, bool) {
	h, ok := r.Handlers[name]
	return h, ok
}

func (r *Result) Filter(name string) (filter.Filter, bool) {
	f, ok := r.Filters[name]
	return f, ok
}

// Close flushes and closes every handler concurrently. Only the first call
// does any work; later calls return the same error.
func (r *Result) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		g, _ := errgroup.WithContext(ctx)
		for name, h := range r.Handlers {
			g.Go(func() error {
				if err := h.Flush(); err != nil {
					return errors.Wrap(err, errors.CodeHandlerClose, "failed to flush handler").About("handler '" + name + "'")
				}
				if err := h.Close(); err != nil {
					return errors.Wrap(err, errors.CodeHandlerClose, "failed to close handler").About("handler '" + name + "'")
				}
				return nil
			})
		}
		r.closeErr = g.Wait()
	})
	return r.closeErr
}
