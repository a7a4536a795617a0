// Package app wires logging for a process at startup: it loads the logging
// document, fills in the per-session debug log path, configures the logger
// hierarchy and hands back a Session for runtime adjustments.
package app

import (
	"context"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/spf13/viper"

	"github.com/olusolaa/hutchlog/internal/config"
	"github.com/olusolaa/hutchlog/internal/dictconfig"
	"github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/log"
)

const (
	DefaultLogDir = "logs"
	// SetupLoggerName is the logger bootstrap progress is reported on.
	SetupLoggerName = "hutchlog.setup"
)

type Options struct {
	// LogDir is used when the document gives the debug handler no filename.
	// Empty means the log_dir viper key, then DefaultLogDir.
	LogDir string
	// User goes into the debug log file name. Empty means $USER.
	User     string
	Stdout   io.Writer
	Stderr   io.Writer
	Now      func() time.Time
	Manager  *log.Manager
	Registry *dictconfig.Registry
}

// SetupLogging loads the logging document from v (see config.Load), points
// the debug handler at a fresh per-session file unless the document or
// overrides name one, and configures the hierarchy. A nil v reads only
// HUTCH_LOG_* environment variables.
func SetupLogging(ctx context.Context, v *viper.Viper, opts Options) (*Session, error) {
	if v == nil {
		v = config.NewViper()
	}
	if opts.Manager == nil {
		opts.Manager = log.Default()
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	doc, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	if debug, ok := doc.Handlers[config.DebugHandler]; ok {
		if _, named := config.Param(debug.Params, "filename"); !named {
			dir := opts.LogDir
			if dir == "" {
				dir = v.GetString(config.KeyLogDir)
			}
			if dir == "" {
				dir = DefaultLogDir
			}
			path, err := DebugLogPath(dir, currentUser(opts.User), opts.Now())
			if err != nil {
				return nil, err
			}
			debug.Params = config.SetParam(debug.Params, "filename", path)
			doc.Handlers[config.DebugHandler] = debug
		}
	}

	logger := log.NewPortsLogger(opts.Manager.Logger(SetupLoggerName))
	env := dictconfig.Env{
		Stdout:   opts.Stdout,
		Stderr:   opts.Stderr,
		Reporter: handler.NewErrorReporter(opts.Stderr),
	}
	res, err := dictconfig.New(opts.Registry, env, logger).Configure(ctx, opts.Manager, doc)
	if err != nil {
		return nil, err
	}

	s := &Session{
		manager: opts.Manager,
		doc:     doc,
		result:  res,
		logger:  logger,
	}
	if h, ok := res.Handler(config.ConsoleHandler); ok {
		s.console = h
	}
	if h, ok := res.Handler(config.DebugHandler); ok {
		s.debug, _ = h.(*handler.RotatingFileHandler)
	}
	if f, ok := res.Filter(config.ObjectFilter); ok {
		s.objects, _ = f.(*filter.ObjectFilter)
	}

	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using logging configuration file: %s", v.ConfigFileUsed())
	} else {
		logger.Debugf(ctx, "Using built-in logging configuration")
	}
	if s.debug != nil {
		logger.Debugf(ctx, "Debug log file: %s", s.debug.Path())
	}
	if dump, err := config.Dump(doc, "yaml"); err != nil {
		logger.Warnf(ctx, "Could not render effective logging configuration: %v", err)
	} else {
		logger.Finef(ctx, "Effective logging configuration:\n%s", dump)
	}
	return s, nil
}

// DebugLogPath is <dir>/<YYYY_MM>/<YYYY_MM_DD_HHhMMmSSs>_<user>.log.
func DebugLogPath(dir, userName string, t time.Time) (string, error) {
	month, err := strftime.Format("%Y_%m", t)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to format log directory name")
	}
	stamp, err := strftime.Format("%Y_%m_%d_%Hh%Mm%Ss", t)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to format log file name")
	}
	return filepath.Join(dir, month, stamp+"_"+userName+".log"), nil
}

func currentUser(name string) string {
	if name != "" {
		return name
	}
	if name = os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return filepath.Base(u.Username)
	}
	return "unknown"
}
