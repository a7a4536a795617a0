package log

import (
	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/record"
)

// Adapter logs through a Logger with a fixed set of extra attributes.
type Adapter struct {
	logger *Logger
	extras map[string]any
}

func copyExtras(base, add map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}

func (a *Adapter) Logger() *Logger { return a.logger }

func (a *Adapter) With(extras map[string]any) *Adapter {
	return &Adapter{logger: a.logger, extras: copyExtras(a.extras, extras)}
}

func (a *Adapter) ForObject(name string) *Adapter {
	return a.With(map[string]any{record.ObjectNameKey: name})
}

func (a *Adapter) Log(lvl level.Level, format string, args ...any) {
	a.logger.log(lvl, nil, a.extras, format, args...)
}

func (a *Adapter) Fine(format string, args ...any) {
	a.logger.log(level.Fine, nil, a.extras, format, args...)
}

func (a *Adapter) Debug(format string, args ...any) {
	a.logger.log(level.Debug, nil, a.extras, format, args...)
}

func (a *Adapter) Info(format string, args ...any) {
	a.logger.log(level.Info, nil, a.extras, format, args...)
}

func (a *Adapter) Warning(format string, args ...any) {
	a.logger.log(level.Warning, nil, a.extras, format, args...)
}

func (a *Adapter) Error(format string, args ...any) {
	a.logger.log(level.Error, nil, a.extras, format, args...)
}

func (a *Adapter) Critical(format string, args ...any) {
	a.logger.log(level.Critical, nil, a.extras, format, args...)
}

func (a *Adapter) Exception(err error, format string, args ...any) {
	a.logger.log(level.Error, err, a.extras, format, args...)
}
