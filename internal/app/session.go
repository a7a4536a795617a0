package app

import (
	"context"
	"log/slog"

	"github.com/olusolaa/hutchlog/internal/config"
	"github.com/olusolaa/hutchlog/internal/core/ports"
	"github.com/olusolaa/hutchlog/internal/dictconfig"
	"github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/log"
)

// Session is the configured logging of a running process.
type Session struct {
	manager *log.Manager
	doc     *config.Document
	result  *dictconfig.Result
	logger  ports.Logger

	console handler.Handler
	debug   *handler.RotatingFileHandler
	objects *filter.ObjectFilter
}

func (s *Session) Document() *config.Document { return s.doc }

func (s *Session) Components() *dictconfig.Result { return s.result }

// ConsoleHandler is nil when the document has no "console" handler.
func (s *Session) ConsoleHandler() handler.Handler { return s.console }

// DebugHandler is nil unless "debug" is a file handler.
func (s *Session) DebugHandler() *handler.RotatingFileHandler { return s.debug }

func (s *Session) ObjectFilter() *filter.ObjectFilter { return s.objects }

func (s *Session) SetConsoleLevel(lvl level.Level) error {
	if s.console == nil {
		return errors.NewUserFacing(errors.CodeConfigValidation, "no console handler configured", "Add a 'console' handler to the logging configuration.")
	}
	s.console.SetLevel(lvl)
	s.logger.Finef(context.Background(), "Console level set to %s", lvl)
	return nil
}

// DebugMode shows DEBUG records on the console, or restores INFO.
func (s *Session) DebugMode(on bool) error {
	if on {
		return s.SetConsoleLevel(level.Debug)
	}
	return s.SetConsoleLevel(level.Info)
}

func (s *Session) Logger(name string) *log.Logger { return s.manager.Logger(name) }

func (s *Session) Slog(name string) *slog.Logger { return log.NewSlog(s.manager.Logger(name)) }

// Ports returns the logger bootstrap code reports progress on.
func (s *Session) Ports() ports.Logger { return s.logger }

// Shutdown detaches every handler from the hierarchy and closes them.
func (s *Session) Shutdown(ctx context.Context) error {
	s.logger.Debugf(ctx, "Shutting down logging")
	s.manager.Reset()
	return s.result.Close(ctx)
}
