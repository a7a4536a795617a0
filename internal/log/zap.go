package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

// zapCore feeds zap entries into a Logger so libraries built on zap share
// the configured handlers. Named zap loggers map onto child loggers:
// NewZap(Get("ophyd")).Named("motor") logs on "ophyd.motor".
type zapCore struct {
	logger *Logger
	fields []zapcore.Field
}

func NewZapCore(l *Logger) zapcore.Core {
	return &zapCore{logger: l}
}

// NewZap returns a *zap.Logger writing into l, with caller capture on.
func NewZap(l *Logger) *zap.Logger {
	return zap.New(NewZapCore(l), zap.AddCaller())
}

// FromZap maps zap levels onto the numeric scale. Levels below zap's debug
// become Fine; DPanic and above become CRITICAL.
func FromZap(l zapcore.Level) level.Level {
	switch {
	case l < zapcore.DebugLevel:
		return level.Fine
	case l == zapcore.DebugLevel:
		return level.Debug
	case l == zapcore.InfoLevel:
		return level.Info
	case l == zapcore.WarnLevel:
		return level.Warning
	case l == zapcore.ErrorLevel:
		return level.Error
	default:
		return level.Critical
	}
}

func (c *zapCore) target(name string) *Logger {
	if name == "" {
		return c.logger
	}
	if c.logger.isRoot() {
		return c.logger.mgr.Logger(name)
	}
	return c.logger.mgr.Logger(c.logger.name + "." + name)
}

func (c *zapCore) Enabled(l zapcore.Level) bool {
	return c.logger.IsEnabledFor(FromZap(l))
}

func (c *zapCore) With(fields []zapcore.Field) zapcore.Core {
	next := &zapCore{logger: c.logger, fields: make([]zapcore.Field, 0, len(c.fields)+len(fields))}
	next.fields = append(next.fields, c.fields...)
	next.fields = append(next.fields, fields...)
	return next
}

func (c *zapCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.target(ent.LoggerName).IsEnabledFor(FromZap(ent.Level)) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *zapCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	l := c.target(ent.LoggerName)
	rec := record.New(l.Name(), FromZap(ent.Level), ent.Message)
	if !ent.Time.IsZero() {
		rec.Time = ent.Time
	}
	if ent.Caller.Defined {
		rec.SetCaller(ent.Caller.PC)
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, group := range [][]zapcore.Field{c.fields, fields} {
		for _, f := range group {
			if f.Type == zapcore.ErrorType && rec.Err == nil {
				if err, ok := f.Interface.(error); ok {
					rec.Err = err
					continue
				}
			}
			f.AddTo(enc)
		}
	}
	rec.AddAttrs(enc.Fields)
	l.Handle(rec)
	return nil
}

// Sync is a no-op: handlers write through on every record.
func (c *zapCore) Sync() error { return nil }
