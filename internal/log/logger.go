package log

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

// Logger is safe for concurrent use.
type Logger struct {
	name string
	mgr  *Manager

	level     atomic.Int64
	propagate atomic.Bool
	disabled  atomic.Bool

	mu       sync.RWMutex
	handlers []handler.Handler
	filters  []filter.Filter
}

func newLogger(name string, m *Manager) *Logger {
	l := &Logger{name: name, mgr: m}
	l.propagate.Store(true)
	return l
}

func (l *Logger) Name() string { return l.name }

func (l *Logger) Level() level.Level { return level.Level(l.level.Load()) }

func (l *Logger) SetLevel(lvl level.Level) { l.level.Store(int64(lvl)) }

func (l *Logger) Propagate() bool { return l.propagate.Load() }

func (l *Logger) SetPropagate(p bool) { l.propagate.Store(p) }

func (l *Logger) Disabled() bool { return l.disabled.Load() }

func (l *Logger) SetDisabled(d bool) { l.disabled.Store(d) }

func (l *Logger) isRoot() bool { return l == l.mgr.root }

func (l *Logger) parent() *Logger {
	if l.isRoot() {
		return nil
	}
	return l.mgr.parent(l.name)
}

// EffectiveLevel is the first level set on this logger or an ancestor.
func (l *Logger) EffectiveLevel() level.Level {
	for cur := l; cur != nil; cur = cur.parent() {
		if lvl := cur.Level(); lvl != level.NotSet {
			return lvl
		}
	}
	return level.NotSet
}

func (l *Logger) IsEnabledFor(lvl level.Level) bool {
	if l.Disabled() {
		return false
	}
	return lvl >= l.EffectiveLevel()
}

func (l *Logger) AddHandler(h handler.Handler) {
	if h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.handlers {
		if existing == h {
			return
		}
	}
	l.handlers = append(l.handlers, h)
}

func (l *Logger) RemoveHandler(h handler.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.handlers {
		if existing == h {
			l.handlers = append(l.handlers[:i:i], l.handlers[i+1:]...)
			return
		}
	}
}

// ClearHandlers detaches every handler and returns them.
func (l *Logger) ClearHandlers() []handler.Handler {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.handlers
	l.handlers = nil
	return out
}

// Handlers returns the attached handlers in dispatch order.
func (l *Logger) Handlers() []handler.Handler {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]handler.Handler, len(l.handlers))
	copy(out, l.handlers)
	return out
}

func (l *Logger) AddFilter(f filter.Filter) {
	if f == nil {
		return
	}
	l.mu.Lock()
	l.filters = append(l.filters, f)
	l.mu.Unlock()
}

func (l *Logger) ClearFilters() {
	l.mu.Lock()
	l.filters = nil
	l.mu.Unlock()
}

func (l *Logger) loggerFilters() []filter.Filter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]filter.Filter, len(l.filters))
	copy(out, l.filters)
	return out
}

// Handle runs this logger's filters and then offers rec to every handler up
// the propagation chain. Ancestor loggers' levels and filters are not
// consulted, only their handlers'.
func (l *Logger) Handle(rec *record.Record) {
	if l.Disabled() || !filter.Apply(l.loggerFilters(), rec) {
		return
	}
	found := 0
	for cur := l; cur != nil; cur = cur.parent() {
		for _, h := range cur.Handlers() {
			found++
			h.Handle(rec)
		}
		if !cur.Propagate() {
			break
		}
	}
	if found == 0 {
		if lr := l.mgr.lastResortHandler(); lr != nil {
			lr.Handle(rec)
		}
	}
}

// callerSkip drops runtime.Callers, Logger.log and the exported method.
const callerSkip = 3

func (l *Logger) log(lvl level.Level, err error, extras map[string]any, format string, args ...any) {
	if !l.IsEnabledFor(lvl) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	rec := record.New(l.name, lvl, msg)
	rec.Err = err
	var pcs [1]uintptr
	if runtime.Callers(callerSkip, pcs[:]) > 0 {
		rec.SetCaller(pcs[0])
	}
	rec.AddAttrs(extras)
	l.Handle(rec)
}

func (l *Logger) Log(lvl level.Level, format string, args ...any) {
	l.log(lvl, nil, nil, format, args...)
}

func (l *Logger) Fine(format string, args ...any) {
	l.log(level.Fine, nil, nil, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(level.Debug, nil, nil, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(level.Info, nil, nil, format, args...)
}

func (l *Logger) Warning(format string, args ...any) {
	l.log(level.Warning, nil, nil, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(level.Error, nil, nil, format, args...)
}

func (l *Logger) Critical(format string, args ...any) {
	l.log(level.Critical, nil, nil, format, args...)
}

// Exception logs at ERROR with err attached to the record.
func (l *Logger) Exception(err error, format string, args ...any) {
	l.log(level.Error, err, nil, format, args...)
}

// With returns an adapter that adds extras to every record.
func (l *Logger) With(extras map[string]any) *Adapter {
	return &Adapter{logger: l, extras: copyExtras(nil, extras)}
}

// ForObject returns an adapter whose records concern the named object.
func (l *Logger) ForObject(name string) *Adapter {
	return l.With(map[string]any{record.ObjectNameKey: name})
}
