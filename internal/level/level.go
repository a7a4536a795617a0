// Package level defines numeric log severities. Levels are plain integers so
// that custom levels finer than DEBUG (such as 5) sit on the same scale as the
// named ones.
package level

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

type Level int

const (
	NotSet Level = 0
	// Fine is the unnamed level below DEBUG used for the debug log file.
	Fine     Level = 5
	Debug    Level = 10
	Info     Level = 20
	Warning  Level = 30
	Error    Level = 40
	Critical Level = 50
)

var (
	namesMu sync.RWMutex
	names   = map[Level]string{
		NotSet:   "NOTSET",
		Debug:    "DEBUG",
		Info:     "INFO",
		Warning:  "WARNING",
		Error:    "ERROR",
		Critical: "CRITICAL",
	}
	aliases = map[string]Level{
		"WARN":  Warning,
		"FATAL": Critical,
	}
)

// Register associates a display name with a level. Later registrations of the
// same level replace the previous name.
func Register(l Level, name string) {
	namesMu.Lock()
	defer namesMu.Unlock()
	names[l] = strings.ToUpper(name)
}

// String returns the registered name, or "Level N" for unnamed levels.
func (l Level) String() string {
	namesMu.RLock()
	name, ok := names[l]
	namesMu.RUnlock()
	if ok {
		return name
	}
	return fmt.Sprintf("Level %d", int(l))
}

func (l Level) named() bool {
	namesMu.RLock()
	defer namesMu.RUnlock()
	_, ok := names[l]
	return ok
}

func lookup(name string) (Level, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	namesMu.RLock()
	defer namesMu.RUnlock()
	for l, n := range names {
		if n == upper {
			return l, true
		}
	}
	l, ok := aliases[upper]
	return l, ok
}

// Parse accepts a level name (case-insensitive), a numeric string, "Level N",
// or any integer value.
func Parse(v any) (Level, error) {
	switch t := v.(type) {
	case Level:
		return t, checkRange(int64(t))
	case int:
		return Level(t), checkRange(int64(t))
	case int32:
		return Level(t), checkRange(int64(t))
	case int64:
		return Level(t), checkRange(t)
	case uint:
		return Level(t), checkRange(int64(t))
	case uint64:
		if t > math.MaxInt32 {
			return 0, fmt.Errorf("level %d out of range", t)
		}
		return Level(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("level %v is not an integer", t)
		}
		return Level(int(t)), checkRange(int64(t))
	case string:
		return ParseString(t)
	case nil:
		return NotSet, nil
	default:
		return 0, fmt.Errorf("unsupported level type %T", v)
	}
}

func ParseString(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NotSet, nil
	}
	if l, ok := lookup(s); ok {
		return l, nil
	}
	num := s
	if rest, ok := strings.CutPrefix(strings.ToUpper(s), "LEVEL "); ok {
		num = strings.TrimSpace(rest)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return Level(n), checkRange(int64(n))
}

func MustParse(v any) Level {
	l, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return l
}

func checkRange(n int64) error {
	if n < 0 || n > math.MaxInt32 {
		return fmt.Errorf("level %d out of range", n)
	}
	return nil
}

// FromSlog maps slog levels onto this scale: slog DEBUG/INFO/WARN/ERROR land on
// 10/20/30/40 and slog -6 lands on 5.
func FromSlog(l slog.Level) Level {
	v := 20 + int(l)*5/2
	if v < 0 {
		v = 0
	}
	return Level(v)
}

// Slog is the inverse of FromSlog, rounding toward the finer slog level.
func (l Level) Slog() slog.Level {
	d := (int(l) - 20) * 2
	q := d / 5
	if d%5 != 0 && d < 0 {
		q--
	}
	return slog.Level(q)
}

// MarshalYAML keeps named levels readable and leaves custom ones numeric.
func (l Level) MarshalYAML() (any, error) {
	if l.named() {
		return l.String(), nil
	}
	return int(l), nil
}

func (l Level) MarshalJSON() ([]byte, error) {
	if l.named() {
		return jsoniter.Marshal(l.String())
	}
	return jsoniter.Marshal(int(l))
}
