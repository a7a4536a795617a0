// Package filter holds record filters. A filter both enriches a record with
// derived display attributes and decides whether it passes.
package filter

import (
	"strings"

	"github.com/olusolaa/hutchlog/internal/record"
)

// Enricher attaches derived attributes that formatters render.
type Enricher interface {
	Enrich(rec *record.Record)
}

// Gate decides whether a record is emitted.
type Gate interface {
	Allow(rec *record.Record) bool
}

// Filter is applied by handlers and loggers: Enrich first, then Allow.
type Filter interface {
	Enricher
	Gate
}

// Apply runs every filter in order and stops at the first rejection.
func Apply(filters []Filter, rec *record.Record) bool {
	for _, f := range filters {
		f.Enrich(rec)
		if !f.Allow(rec) {
			return false
		}
	}
	return true
}

// NameFilter passes records from the named logger and its dotted descendants.
// An empty name passes everything.
type NameFilter struct {
	name string
}

func NewNameFilter(name string) *NameFilter {
	return &NameFilter{name: name}
}

func (f *NameFilter) Enrich(*record.Record) {}

func (f *NameFilter) Allow(rec *record.Record) bool {
	if f.name == "" || rec.Name == f.name {
		return true
	}
	return strings.HasPrefix(rec.Name, f.name+".")
}
