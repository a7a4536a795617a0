package dictconfig

import (
	"context"
	"sort"
	"strings"

	"github.com/olusolaa/hutchlog/internal/config"
	"github.com/olusolaa/hutchlog/internal/core/ports"
	"github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/log"
)

type Configurator struct {
	registry *Registry
	env      Env
	logger   ports.Logger
}

// New returns a Configurator. A nil registry means DefaultRegistry and a nil
// logger discards progress messages.
func New(registry *Registry, env Env, logger ports.Logger) *Configurator {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Configurator{
		registry: registry,
		env:      env.withDefaults(),
		logger:   logger,
	}
}

// Configure builds every component the document declares and installs them
// on mgr, replacing and closing whatever handlers were attached before.
// Nothing on mgr changes unless every component builds.
func (c *Configurator) Configure(ctx context.Context, mgr *log.Manager, doc *config.Document) (*Result, error) {
	if mgr == nil {
		return nil, errors.New(errors.CodeInternal, "logger manager cannot be nil")
	}
	if doc == nil {
		return nil, errors.New(errors.CodeInternal, "logging document cannot be nil")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	res, err := c.build(ctx, doc)
	if err != nil {
		if cerr := res.Close(ctx); cerr != nil {
			c.logger.Warnf(ctx, "Failed to close handlers after configuration error: %v", cerr)
		}
		return nil, err
	}

	existing := mgr.Names()
	c.closeDetached(ctx, mgr)

	for _, name := range sortedKeys(doc.Loggers) {
		c.applyLogger(mgr.Logger(name), doc.Loggers[name], res, false)
		c.logger.Debugf(ctx, "Configured logger '%s'", name)
	}
	if doc.Root != nil {
		c.applyLogger(mgr.Root(), *doc.Root, res, true)
	}

	if doc.DisableExistingLoggers {
		for _, name := range existing {
			if !namedOrDescendant(name, doc.Loggers) {
				mgr.Logger(name).SetDisabled(true)
				c.logger.Debugf(ctx, "Disabled existing logger '%s'", name)
			}
		}
	}

	c.logger.Debugf(ctx, "Logging configured: %d formatters, %d filters, %d handlers, %d loggers",
		len(res.Formatters), len(res.Filters), len(res.Handlers), len(doc.Loggers))
	return res, nil
}

func (c *Configurator) build(ctx context.Context, doc *config.Document) (*Result, error) {
	res := newResult()

	for _, name := range sortedKeys(doc.Formatters) {
		spec := doc.Formatters[name]
		factory, err := c.registry.Formatter(spec.Factory)
		if err != nil {
			return res, invalid(err, "formatter", name)
		}
		f, err := factory(spec.Params)
		if err != nil {
			return res, invalid(err, "formatter", name)
		}
		res.Formatters[name] = f
		c.logger.Finef(ctx, "Built formatter '%s' (%s)", name, factoryName(spec.Factory, DefaultFormatterFactory))
	}

	for _, name := range sortedKeys(doc.Filters) {
		spec := doc.Filters[name]
		factory, err := c.registry.Filter(spec.Factory)
		if err != nil {
			return res, invalid(err, "filter", name)
		}
		f, err := factory(spec.Params)
		if err != nil {
			return res, invalid(err, "filter", name)
		}
		res.Filters[name] = f
		c.logger.Finef(ctx, "Built filter '%s' (%s)", name, factoryName(spec.Factory, DefaultFilterFactory))
	}

	for _, name := range sortedKeys(doc.Handlers) {
		spec := doc.Handlers[name]
		factory, err := c.registry.Handler(spec.Class)
		if err != nil {
			return res, invalid(err, "handler", name)
		}
		h, err := factory(c.env, name, spec.Params)
		if err != nil {
			return res, invalid(err, "handler", name)
		}
		h.SetLevel(spec.Level)
		if spec.Formatter != "" {
			h.SetFormatter(res.Formatters[spec.Formatter])
		}
		for _, f := range spec.Filters {
			h.AddFilter(res.Filters[f])
		}
		res.Handlers[name] = h
		c.logger.Finef(ctx, "Built handler '%s' (%s) at level %s", name, spec.Class, spec.Level)
	}
	return res, nil
}

// closeDetached removes all handlers from mgr and closes them.
func (c *Configurator) closeDetached(ctx context.Context, mgr *log.Manager) {
	seen := make(map[handler.Handler]bool)
	for _, h := range mgr.Reset() {
		if seen[h] {
			continue
		}
		seen[h] = true
		if err := h.Close(); err != nil {
			c.logger.Warnf(ctx, "Failed to close previous handler '%s': %v", h.Name(), err)
		}
	}
}

func (c *Configurator) applyLogger(l *log.Logger, spec config.LoggerSpec, res *Result, root bool) {
	if spec.Level != nil {
		l.SetLevel(*spec.Level)
	}
	for _, name := range spec.Handlers {
		l.AddHandler(res.Handlers[name])
	}
	for _, name := range spec.Filters {
		l.AddFilter(res.Filters[name])
	}
	if !root && spec.Propagate != nil {
		l.SetPropagate(*spec.Propagate)
	}
}

// namedOrDescendant reports whether name is configured by the document, or
// sits below a logger that is. Document names are lower case (viper folds
// keys), so the comparison ignores case.
func namedOrDescendant(name string, loggers map[string]config.LoggerSpec) bool {
	lower := strings.ToLower(name)
	for configured := range loggers {
		configured = strings.ToLower(configured)
		if lower == configured || strings.HasPrefix(lower, configured+".") {
			return true
		}
	}
	return false
}

// invalid tags a factory error. Errors that already carry a code (such as a
// file that cannot be opened) keep it; anything else is a configuration
// problem.
func invalid(err error, kind, name string) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.About(kind + " '" + name + "'")
	}
	return errors.WrapUserFacing(err, errors.CodeConfigValidation, "cannot build "+kind, "Check the "+kind+" parameters in the logging configuration.").About(kind + " '" + name + "'")
}

func factoryName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type nopLogger struct{}

func (nopLogger) Finef(context.Context, string, ...any)         {}
func (nopLogger) Debugf(context.Context, string, ...any)        {}
func (nopLogger) Infof(context.Context, string, ...any)         {}
func (nopLogger) Warnf(context.Context, string, ...any)         {}
func (nopLogger) Errorf(context.Context, error, string, ...any) {}
func (n nopLogger) WithFields(map[string]any) ports.Logger      { return n }
