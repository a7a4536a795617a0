package filter

import (
	"sort"
	"sync"

	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

// ObjectFilter handles records about named control-system objects.
//
// Every record leaves Enrich with an ophyd_object_name attribute, empty when
// the record concerns no object. Records from tracked objects pass only at or
// above the filter level.
//
// A record naming an untracked object always passes, at any level, and even
// when AllowOtherMessages is false. AllowOtherMessages governs only records
// that name no object at all: when set they pass whatever their level,
// otherwise they are dropped.
type ObjectFilter struct {
	mu                 sync.RWMutex
	tracked            map[string]struct{}
	level              level.Level
	allowOtherMessages bool
}

func NewObjectFilter(lvl level.Level, allowOtherMessages bool, objects ...string) *ObjectFilter {
	f := &ObjectFilter{
		tracked:            make(map[string]struct{}, len(objects)),
		level:              lvl,
		allowOtherMessages: allowOtherMessages,
	}
	f.Track(objects...)
	return f
}

func (f *ObjectFilter) Level() level.Level { return f.level }

func (f *ObjectFilter) AllowOtherMessages() bool { return f.allowOtherMessages }

func (f *ObjectFilter) Enrich(rec *record.Record) {
	name, _ := rec.ObjectName()
	rec.SetAttr(record.ObjectNameKey, name)
}

func (f *ObjectFilter) Allow(rec *record.Record) bool {
	name, ok := rec.ObjectName()
	if !ok {
		return f.allowOtherMessages
	}
	f.mu.RLock()
	_, tracked := f.tracked[name]
	f.mu.RUnlock()
	if tracked {
		return rec.Level >= f.level
	}
	return true
}

// Track adds object names whose records are held to the filter level.
func (f *ObjectFilter) Track(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		if n != "" {
			f.tracked[n] = struct{}{}
		}
	}
}

func (f *ObjectFilter) Untrack(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range names {
		delete(f.tracked, n)
	}
}

func (f *ObjectFilter) Tracked() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.tracked))
	for n := range f.tracked {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
