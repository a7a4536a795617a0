// Package log provides the logger hierarchy. Loggers are named with dotted
// paths; a record logged on "a.b" is offered to the handlers of "a.b", then
// "a", then the root logger, until a logger with propagation turned off is
// reached.
package log

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/level"
)

const RootName = "root"

type Manager struct {
	mu      sync.RWMutex
	root    *Logger
	loggers map[string]*Logger

	// lastResort receives WARNING and above when no handler is found.
	lastResort handler.Handler
}

// NewManager returns a hierarchy whose root logs at WARNING with no handlers.
func NewManager() *Manager {
	m := &Manager{loggers: make(map[string]*Logger)}
	m.root = newLogger(RootName, m)
	m.root.SetLevel(level.Warning)
	lr := handler.NewStream("lastResort", os.Stderr, nil)
	lr.SetLevel(level.Warning)
	m.lastResort = lr
	return m
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default is the process-wide hierarchy.
func Default() *Manager {
	defaultOnce.Do(func() { defaultMgr = NewManager() })
	return defaultMgr
}

// Get returns a logger from the default hierarchy.
func Get(name string) *Logger {
	return Default().Logger(name)
}

func (m *Manager) Root() *Logger { return m.root }

// Logger returns the logger with the given dotted name, creating it on first
// use. An empty name or "root" is the root logger.
func (m *Manager) Logger(name string) *Logger {
	if name == "" || name == RootName {
		return m.root
	}
	m.mu.RLock()
	l, ok := m.loggers[name]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.loggers[name]; ok {
		return l
	}
	l = newLogger(name, m)
	m.loggers[name] = l
	return l
}

// Names lists the non-root loggers created so far.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.loggers))
	for n := range m.loggers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetLastResort replaces the handler used when a record finds no handler.
// A nil handler drops such records.
func (m *Manager) SetLastResort(h handler.Handler) {
	m.mu.Lock()
	m.lastResort = h
	m.mu.Unlock()
}

func (m *Manager) lastResortHandler() handler.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastResort
}

// parent returns the closest existing ancestor of name, or the root.
func (m *Manager) parent(name string) *Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return m.root
		}
		name = name[:i]
		if l, ok := m.loggers[name]; ok {
			return l
		}
	}
}

// Reset detaches and returns every handler, restores the root to WARNING and
// re-enables all loggers. Handlers are not closed.
func (m *Manager) Reset() []handler.Handler {
	var detached []handler.Handler
	detached = append(detached, m.root.ClearHandlers()...)
	m.root.ClearFilters()
	m.root.SetLevel(level.Warning)

	m.mu.RLock()
	loggers := make([]*Logger, 0, len(m.loggers))
	for _, l := range m.loggers {
		loggers = append(loggers, l)
	}
	m.mu.RUnlock()

	for _, l := range loggers {
		detached = append(detached, l.ClearHandlers()...)
		l.ClearFilters()
		l.SetLevel(level.NotSet)
		l.SetPropagate(true)
		l.SetDisabled(false)
	}
	return detached
}
