// Package handler routes formatted records to their destinations. Each
// handler has its own level floor, filter chain and formatter, and serialises
// formatting and writing so concurrent log calls never interleave within a
// line.
package handler

import (
	"sync"
	"sync/atomic"

	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/format"
	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

const terminator = "\n"

type Handler interface {
	Name() string
	Level() level.Level
	SetLevel(l level.Level)
	Formatter() format.Formatter
	SetFormatter(f format.Formatter)
	AddFilter(f filter.Filter)
	Filters() []filter.Filter
	// Handle emits rec if it clears the level floor and every filter. It
	// reports whether the record was emitted; write failures go to the error
	// reporter, not the caller.
	Handle(rec *record.Record) bool
	Flush() error
	Close() error
}

var defaultFormatter format.Formatter

func init() {
	f, err := format.NewDefault(format.DefaultFormat, "")
	if err != nil {
		panic(err)
	}
	defaultFormatter = f
}

// Base implements everything except the destination write.
type Base struct {
	name     string
	level    atomic.Int64
	reporter *ErrorReporter

	filtersMu sync.RWMutex
	filters   []filter.Filter

	mu        sync.Mutex
	formatter format.Formatter
	emit      func(line []byte) error
}

func newBase(name string, reporter *ErrorReporter, emit func([]byte) error) *Base {
	if reporter == nil {
		reporter = DefaultErrorReporter()
	}
	return &Base{
		name:      name,
		reporter:  reporter,
		formatter: defaultFormatter,
		emit:      emit,
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Level() level.Level { return level.Level(b.level.Load()) }

func (b *Base) SetLevel(l level.Level) { b.level.Store(int64(l)) }

func (b *Base) Formatter() format.Formatter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.formatter
}

// SetFormatter replaces the formatter; nil restores "%(message)s".
func (b *Base) SetFormatter(f format.Formatter) {
	if f == nil {
		f = defaultFormatter
	}
	b.mu.Lock()
	b.formatter = f
	b.mu.Unlock()
}

func (b *Base) AddFilter(f filter.Filter) {
	if f == nil {
		return
	}
	b.filtersMu.Lock()
	b.filters = append(b.filters, f)
	b.filtersMu.Unlock()
}

func (b *Base) Filters() []filter.Filter {
	b.filtersMu.RLock()
	defer b.filtersMu.RUnlock()
	out := make([]filter.Filter, len(b.filters))
	copy(out, b.filters)
	return out
}

func (b *Base) Handle(rec *record.Record) bool {
	if rec.Level < b.Level() {
		return false
	}
	if !filter.Apply(b.Filters(), rec) {
		return false
	}

	b.mu.Lock()
	line := b.formatter.Format(rec) + terminator
	err := b.emit([]byte(line))
	b.mu.Unlock()

	if err != nil {
		b.reporter.Report(b.name, rec, err)
	}
	return true
}
