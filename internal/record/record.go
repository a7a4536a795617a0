package record

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/olusolaa/hutchlog/internal/level"
)

// ObjectNameKey is the extra attribute carrying the name of the control-system
// object a message concerns.
const ObjectNameKey = "ophyd_object_name"

// ObjectKey may hold a value implementing Named; filters derive ObjectNameKey
// from it.
const ObjectKey = "object"

// Named is implemented by objects that can be attached to log records.
type Named interface {
	Name() string
}

var (
	pid       = os.Getpid()
	startTime = time.Now()
)

// Record is one logging event. A Record is created per log call and handed to
// every handler in turn; filters may add extra attributes to it.
type Record struct {
	Name    string
	Level   level.Level
	Message string
	Time    time.Time
	PID     int
	Err     error

	PC       uintptr
	Pathname string
	Line     int
	Function string

	extras map[string]any
}

// New builds a record without caller information.
func New(name string, lvl level.Level, msg string) *Record {
	return &Record{
		Name:    name,
		Level:   lvl,
		Message: msg,
		Time:    time.Now(),
		PID:     pid,
	}
}

// SetCaller resolves file, line and function from a program counter.
func (r *Record) SetCaller(pc uintptr) {
	if pc == 0 {
		return
	}
	r.PC = pc
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	r.Pathname = f.File
	r.Line = f.Line
	r.Function = f.Function
}

// Filename is the base name of the source file.
func (r *Record) Filename() string {
	if r.Pathname == "" {
		return ""
	}
	return filepath.Base(r.Pathname)
}

// Module is the file name without extension.
func (r *Record) Module() string {
	name := r.Filename()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FuncName strips the import path and package qualifier from the function,
// e.g. "github.com/x/y/pkg.(*T).Run" becomes "(*T).Run".
func (r *Record) FuncName() string {
	fn := r.Function
	if fn == "" {
		return ""
	}
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.Index(fn, "."); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}

// Created is the event time as fractional unix seconds.
func (r *Record) Created() float64 {
	return float64(r.Time.UnixNano()) / 1e9
}

// Msecs is the millisecond part of the event time.
func (r *Record) Msecs() int {
	return r.Time.Nanosecond() / int(time.Millisecond)
}

// RelativeCreated is milliseconds since the package was loaded.
func (r *Record) RelativeCreated() int64 {
	return r.Time.Sub(startTime).Milliseconds()
}

func (r *Record) Attr(key string) (any, bool) {
	if r.extras == nil {
		return nil, false
	}
	v, ok := r.extras[key]
	return v, ok
}

func (r *Record) SetAttr(key string, v any) {
	if r.extras == nil {
		r.extras = make(map[string]any)
	}
	r.extras[key] = v
}

func (r *Record) AddAttrs(attrs map[string]any) {
	for k, v := range attrs {
		r.SetAttr(k, v)
	}
}

// AttrKeys returns the extra attribute keys in sorted order.
func (r *Record) AttrKeys() []string {
	keys := make([]string, 0, len(r.extras))
	for k := range r.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ObjectName returns the object name attached directly or derived from an
// attached Named object.
func (r *Record) ObjectName() (string, bool) {
	if v, ok := r.Attr(ObjectNameKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if v, ok := r.Attr(ObjectKey); ok {
		if n, ok := v.(Named); ok && n != nil {
			if name := n.Name(); name != "" {
				return name, true
			}
		}
	}
	return "", false
}
