package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/olusolaa/hutchlog/internal/core/ports"
	apperrors "github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/level"
)

type slogAdapter struct {
	logger *slog.Logger
}

// NewPortsLogger exposes l through the ports.Logger interface.
func NewPortsLogger(l *Logger) ports.Logger {
	return &slogAdapter{logger: NewSlog(l)}
}

func (s *slogAdapter) log(ctx context.Context, lvl slog.Level, err error, format string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.logger.Enabled(ctx, lvl) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	// skip runtime.Callers, this function and the exported method
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])

	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			r.AddAttrs(slog.String("error_code", string(appErr.Code)))
			if appErr.InternalDetails != "" {
				r.AddAttrs(slog.String("error_details", appErr.InternalDetails))
			}
		}
		r.AddAttrs(slog.Any("error", err))
	}

	_ = s.logger.Handler().Handle(ctx, r)
}

func (s *slogAdapter) Finef(ctx context.Context, format string, args ...any) {
	s.log(ctx, level.Fine.Slog(), nil, format, args...)
}

func (s *slogAdapter) Debugf(ctx context.Context, format string, args ...any) {
	s.log(ctx, slog.LevelDebug, nil, format, args...)
}

func (s *slogAdapter) Infof(ctx context.Context, format string, args ...any) {
	s.log(ctx, slog.LevelInfo, nil, format, args...)
}

func (s *slogAdapter) Warnf(ctx context.Context, format string, args ...any) {
	s.log(ctx, slog.LevelWarn, nil, format, args...)
}

func (s *slogAdapter) Errorf(ctx context.Context, err error, format string, args ...any) {
	s.log(ctx, slog.LevelError, err, format, args...)
}

func (s *slogAdapter) WithFields(fields map[string]any) ports.Logger {
	anyAttrs := make([]any, 0, len(fields))
	for k, v := range fields {
		anyAttrs = append(anyAttrs, slog.Any(k, v))
	}
	return &slogAdapter{logger: s.logger.With(anyAttrs...)}
}
