package log

import (
	"context"
	"log/slog"
	"strings"

	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

// slogHandler feeds slog records into a Logger. Attributes become record
// extras, keyed by their group path joined with dots; an error-valued "err"
// or "error" attribute becomes the record error.
type slogHandler struct {
	logger *Logger
	attrs  []slog.Attr
	prefix string
}

func NewSlogHandler(l *Logger) slog.Handler {
	return &slogHandler{logger: l}
}

// NewSlog returns a *slog.Logger writing into l.
func NewSlog(l *Logger) *slog.Logger {
	return slog.New(NewSlogHandler(l))
}

func (h *slogHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return h.logger.IsEnabledFor(level.FromSlog(lvl))
}

func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	rec := record.New(h.logger.Name(), level.FromSlog(r.Level), r.Message)
	if !r.Time.IsZero() {
		rec.Time = r.Time
	}
	rec.SetCaller(r.PC)
	for _, a := range h.attrs {
		addAttr(rec, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(rec, h.prefix, a)
		return true
	})
	h.logger.Handle(rec)
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func addAttr(rec *record.Record, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if v.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(rec, groupPrefix, ga)
		}
		return
	}
	key := prefix + a.Key
	val := v.Any()
	if err, ok := val.(error); ok && rec.Err == nil && (key == "err" || key == "error") {
		rec.Err = err
		return
	}
	if strings.HasSuffix(key, "."+record.ObjectNameKey) {
		key = record.ObjectNameKey
	}
	rec.SetAttr(key, val)
}
