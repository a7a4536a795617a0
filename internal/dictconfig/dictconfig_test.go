package dictconfig

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/hutchlog/internal/config"
	"github.com/olusolaa/hutchlog/internal/core/ports/mocks"
	apperrors "github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/log"
)

type testEnv struct {
	Env
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestEnv() testEnv {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return testEnv{
		Env:    Env{Stdout: stdout, Stderr: stderr, Reporter: handler.NewErrorReporter(io.Discard)},
		stdout: stdout,
		stderr: stderr,
	}
}

func defaultDoc(t *testing.T, logFile string) *config.Document {
	t.Helper()
	doc, err := config.Parse(config.DefaultYAML())
	require.NoError(t, err)
	debug := doc.Handlers[config.DebugHandler]
	debug.Params = config.SetParam(debug.Params, "filename", logFile)
	doc.Handlers[config.DebugHandler] = debug
	custom := doc.Formatters["custom"]
	custom.Params = config.SetParam(custom.Params, "colors", false)
	doc.Formatters["custom"] = custom
	return doc
}

func parseDoc(t *testing.T, yaml string) *config.Document {
	t.Helper()
	doc, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return doc
}

func handlerNames(hs []handler.Handler) []string {
	names := make([]string, len(hs))
	for i, h := range hs {
		names[i] = h.Name()
	}
	return names
}

func TestConfigure_DefaultDocument(t *testing.T) {
	env := newTestEnv()
	logFile := filepath.Join(t.TempDir(), "2024_01", "debug.log")
	mgr := log.NewManager()

	res, err := New(nil, env.Env, nil).Configure(context.Background(), mgr, defaultDoc(t, logFile))
	require.NoError(t, err)

	root := mgr.Root()
	assert.Equal(t, level.Fine, root.Level())
	assert.Equal(t, []string{"console", "debug"}, handlerNames(root.Handlers()))

	console, ok := res.Handler("console")
	require.True(t, ok)
	assert.Equal(t, level.Info, console.Level())
	stream, ok := console.(*handler.StreamHandler)
	require.True(t, ok)
	assert.Same(t, env.stdout, stream.Writer())

	debugH, ok := res.Handler("debug")
	require.True(t, ok)
	assert.Equal(t, level.Fine, debugH.Level())
	rotating, ok := debugH.(*handler.RotatingFileHandler)
	require.True(t, ok)
	assert.Equal(t, handler.RotatingFileOptions{
		Filename:    logFile,
		MaxBytes:    20971520,
		BackupCount: 10,
		Mode:        "a",
		Delay:       false,
	}, rotating.Options())
	_, err = os.Stat(logFile)
	require.NoError(t, err, "delay 0 opens the file at configuration time")

	objFilter, ok := res.Filter(config.ObjectFilter)
	require.True(t, ok)
	of, ok := objFilter.(*filter.ObjectFilter)
	require.True(t, ok)
	assert.Equal(t, level.Debug, of.Level())
	assert.True(t, of.AllowOtherMessages())
	assert.Empty(t, of.Tracked())
	for _, h := range []handler.Handler{console, debugH} {
		require.Len(t, h.Filters(), 1)
		assert.Same(t, objFilter, h.Filters()[0])
	}

	lg := mgr.Logger("hutch.test")
	lg.Info("hello")
	lg.Fine("verbose detail")
	lg.Log(level.Level(1), "too quiet")
	require.NoError(t, res.Close(context.Background()))

	out := env.stdout.String()
	assert.Contains(t, out, "INFO     TestConfigure_DefaultDocument  hello\n")
	assert.NotContains(t, out, "verbose detail")
	assert.NotContains(t, out, "too quiet")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], " - PID ")
	assert.Contains(t, lines[0], "INFO     ")
	assert.True(t, strings.HasSuffix(lines[0], "  hello"))
	assert.Contains(t, lines[1], "Level 5 ")
	assert.True(t, strings.HasSuffix(lines[1], "  verbose detail"))
}

func TestConfigure_ReplacesPreviousHandlers(t *testing.T) {
	env := newTestEnv()
	mgr := log.NewManager()
	old := handler.NewStream("old", env.stderr, env.Reporter)
	mgr.Root().AddHandler(old)
	mgr.Logger("hutch").AddHandler(old)

	doc := parseDoc(t, `
version: 1
handlers:
  out:
    class: logging.StreamHandler
    stream: ext://sys.stdout
root:
  level: DEBUG
  handlers: [out]
`)
	res, err := New(nil, env.Env, nil).Configure(context.Background(), mgr, doc)
	require.NoError(t, err)
	defer res.Close(context.Background())

	assert.Equal(t, []string{"out"}, handlerNames(mgr.Root().Handlers()))
	assert.Empty(t, mgr.Logger("hutch").Handlers())
	assert.Equal(t, level.Debug, mgr.Root().Level())

	mgr.Logger("hutch").Debug("after")
	assert.Equal(t, "after\n", env.stdout.String())
	assert.Empty(t, env.stderr.String())
}

func TestConfigure_LoggersAndDisableExisting(t *testing.T) {
	env := newTestEnv()
	mgr := log.NewManager()
	mgr.Logger("ophyd.old")
	mgr.Logger("app.child")

	doc := parseDoc(t, `
version: 1
disable_existing_loggers: true
filters:
  only_app:
    name: app
handlers:
  out:
    class: logging.StreamHandler
    stream: stdout
loggers:
  app:
    level: WARNING
    handlers: [out]
    filters: [only_app]
    propagate: false
root:
  level: INFO
`)
	res, err := New(nil, env.Env, nil).Configure(context.Background(), mgr, doc)
	require.NoError(t, err)
	defer res.Close(context.Background())

	app := mgr.Logger("app")
	assert.Equal(t, level.Warning, app.Level())
	assert.False(t, app.Propagate())
	assert.Equal(t, []string{"out"}, handlerNames(app.Handlers()))

	assert.True(t, mgr.Logger("ophyd.old").Disabled())
	assert.False(t, mgr.Logger("app.child").Disabled())
	assert.False(t, app.Disabled())

	mgr.Logger("app.child").Warning("kept")
	mgr.Logger("app.child").Info("below app level")
	assert.Equal(t, "kept\n", env.stdout.String())
}

type closeRecorder struct {
	*handler.StreamHandler
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return c.StreamHandler.Close()
}

func TestConfigure_FailureLeavesManagerUntouched(t *testing.T) {
	env := newTestEnv()
	reg := DefaultRegistry()
	var built *closeRecorder
	require.NoError(t, reg.RegisterHandler("test.Recorder", func(env Env, name string, _ map[string]any) (handler.Handler, error) {
		built = &closeRecorder{StreamHandler: handler.NewStream(name, env.Stdout, env.Reporter)}
		return built, nil
	}))

	mgr := log.NewManager()
	sentinel := handler.NewStream("sentinel", io.Discard, env.Reporter)
	mgr.Root().AddHandler(sentinel)

	doc := parseDoc(t, `
version: 1
handlers:
  a:
    class: test.Recorder
  b:
    class: logging.NoSuchHandler
root:
  handlers: [a, b]
`)
	_, err := New(reg, env.Env, nil).Configure(context.Background(), mgr, doc)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnknownFactory, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "handler 'b'")

	require.NotNil(t, built)
	assert.True(t, built.closed)
	assert.Equal(t, []string{"sentinel"}, handlerNames(mgr.Root().Handlers()))
	assert.Equal(t, level.Warning, mgr.Root().Level())
}

func TestConfigure_Errors(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	tests := []struct {
		name     string
		yaml     string
		code     apperrors.Code
		contains string
	}{
		{
			name:     "unknown formatter factory",
			yaml:     "version: 1\nformatters:\n  f:\n    (): my.Formatter\n",
			code:     apperrors.CodeUnknownFactory,
			contains: "formatter 'f'",
		},
		{
			name:     "unknown formatter parameter",
			yaml:     "version: 1\nformatters:\n  f:\n    format: '%(message)s'\n    colour: red\n",
			code:     apperrors.CodeConfigValidation,
			contains: "colour",
		},
		{
			name:     "bad template",
			yaml:     "version: 1\nformatters:\n  f:\n    format: '%(message'\n",
			code:     apperrors.CodeConfigValidation,
			contains: "formatter 'f'",
		},
		{
			name:     "fmt and format together",
			yaml:     "version: 1\nformatters:\n  f:\n    format: a\n    fmt: b\n",
			code:     apperrors.CodeConfigValidation,
			contains: "excluded_with",
		},
		{
			name:     "bad filter level",
			yaml:     "version: 1\nfilters:\n  o:\n    (): hutch_python.log_setup.ObjectFilter\n    level: LOUD\n",
			code:     apperrors.CodeConfigValidation,
			contains: "filter 'o'",
		},
		{
			name:     "unknown stream",
			yaml:     "version: 1\nhandlers:\n  h:\n    class: logging.StreamHandler\n    stream: ext://sys.stdin\n",
			code:     apperrors.CodeConfigValidation,
			contains: "oneof",
		},
		{
			name:     "missing filename",
			yaml:     "version: 1\nhandlers:\n  h:\n    class: logging.handlers.RotatingFileHandler\n    maxBytes: 1048576\n",
			code:     apperrors.CodeConfigValidation,
			contains: "required",
		},
		{
			name:     "maxBytes not whole MiB",
			yaml:     "version: 1\nhandlers:\n  h:\n    class: logging.handlers.RotatingFileHandler\n    filename: " + filepath.Join(dir, "x.log") + "\n    maxBytes: 1000\n    backupCount: 1\n",
			code:     apperrors.CodeConfigValidation,
			contains: "multiple of 1048576",
		},
		{
			name:     "file handler with rotation",
			yaml:     "version: 1\nhandlers:\n  h:\n    class: logging.FileHandler\n    filename: " + filepath.Join(dir, "y.log") + "\n    maxBytes: 1048576\n",
			code:     apperrors.CodeConfigValidation,
			contains: "does not rotate",
		},
		{
			name:     "unopenable file",
			yaml:     "version: 1\nhandlers:\n  h:\n    class: logging.FileHandler\n    filename: " + filepath.Join(blocker, "z.log") + "\n",
			code:     apperrors.CodeHandlerOpenError,
			contains: "handler 'h'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, tt.yaml)
			_, err := New(nil, newTestEnv().Env, nil).Configure(context.Background(), log.NewManager(), doc)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestConfigure_ReportsProgress(t *testing.T) {
	logger := mocks.NewLogger(t)
	logger.On("Finef", mock.Anything, "Built formatter '%s' (%s)", "plain", DefaultFormatterFactory).Once()
	logger.On("Debugf", mock.Anything, mock.MatchedBy(func(s string) bool {
		return strings.HasPrefix(s, "Logging configured")
	}), 1, 0, 0, 0).Once()

	doc := parseDoc(t, "version: 1\nformatters:\n  plain:\n    format: '%(message)s'\n")
	res, err := New(nil, newTestEnv().Env, logger).Configure(context.Background(), log.NewManager(), doc)
	require.NoError(t, err)
	assert.Len(t, res.Formatters, 1)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	factory := func(map[string]any) (filter.Filter, error) { return filter.NewNameFilter(""), nil }

	require.NoError(t, reg.RegisterFilter("mine", factory))
	err := reg.RegisterFilter("mine", factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	require.Error(t, reg.RegisterFilter("", factory))
	require.Error(t, reg.RegisterFilter("nil", nil))

	_, err = reg.Filter("mine")
	require.NoError(t, err)
	_, err = reg.Filter("other")
	assert.Equal(t, apperrors.CodeUnknownFactory, apperrors.GetCode(err))
	_, _, userFacing := apperrors.GetUserFacingMessage(err)
	assert.True(t, userFacing)

	def := DefaultRegistry()
	_, err = def.Formatter("")
	assert.NoError(t, err, "an empty factory falls back to the default formatter")
	_, err = def.Filter("")
	assert.NoError(t, err)
	_, err = def.Handler("")
	assert.Error(t, err)
}

func TestBuiltins_ObjectFilterParams(t *testing.T) {
	f, err := newObjectFilter(nil)
	require.NoError(t, err)
	of := f.(*filter.ObjectFilter)
	assert.Equal(t, level.Warning, of.Level())
	assert.True(t, of.AllowOtherMessages())

	// Environment overrides arrive as strings.
	f, err = newObjectFilter(map[string]any{
		"Allow_Other_Messages": "false",
		"level":                "10",
		"objects":              "motor2,motor1",
	})
	require.NoError(t, err)
	of = f.(*filter.ObjectFilter)
	assert.Equal(t, level.Debug, of.Level())
	assert.False(t, of.AllowOtherMessages())
	assert.Equal(t, []string{"motor1", "motor2"}, of.Tracked())
}

func TestBuiltins_StreamTargets(t *testing.T) {
	env := newTestEnv().Env
	for stream, want := range map[string]io.Writer{
		"ext://sys.stdout": env.Stdout,
		"stdout":           env.Stdout,
		"ext://sys.stderr": env.Stderr,
		"":                 env.Stderr,
	} {
		params := map[string]any{}
		if stream != "" {
			params["stream"] = stream
		}
		h, err := newStreamHandler(env, "s", params)
		require.NoError(t, err)
		assert.Same(t, want, h.(*handler.StreamHandler).Writer(), stream)
	}
}

func TestBuiltins_RotatingWeakTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weak.log")
	h, err := newRotatingFileHandler(newTestEnv().Env, "debug", map[string]any{
		"filename":    path,
		"maxbytes":    "2097152",
		"backupcount": "3",
		"mode":        "w",
		"delay":       1,
	})
	require.NoError(t, err)
	defer h.Close()

	opts := h.(*handler.RotatingFileHandler).Options()
	assert.Equal(t, int64(2*handler.MiB), opts.MaxBytes)
	assert.Equal(t, 3, opts.BackupCount)
	assert.True(t, opts.Delay)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "delayed handler must not create the file")
}

func TestResult_CloseIsIdempotent(t *testing.T) {
	env := newTestEnv()
	doc := defaultDoc(t, filepath.Join(t.TempDir(), "d.log"))
	res, err := New(nil, env.Env, nil).Configure(context.Background(), log.NewManager(), doc)
	require.NoError(t, err)

	require.NoError(t, res.Close(context.Background()))
	require.NoError(t, res.Close(context.Background()))
}
