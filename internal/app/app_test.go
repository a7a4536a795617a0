package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/hutchlog/internal/config"
	apperrors "github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/level"
	"github.com/olusolaa/hutchlog/internal/log"
)

var sessionStart = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.Local)

type fixture struct {
	session *Session
	dir     string
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	manager *log.Manager
}

func newViper() *viper.Viper {
	v := config.New()
	v.Set("formatters::custom::colors", false)
	return v
}

func setup(t *testing.T, v *viper.Viper) *fixture {
	t.Helper()
	f := &fixture{
		dir:     t.TempDir(),
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		manager: log.NewManager(),
	}
	s, err := SetupLogging(context.Background(), v, Options{
		LogDir:  f.dir,
		User:    "opr",
		Stdout:  f.stdout,
		Stderr:  f.stderr,
		Now:     func() time.Time { return sessionStart },
		Manager: f.manager,
	})
	require.NoError(t, err)
	f.session = s
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return f
}

func (f *fixture) debugLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.session.DebugHandler().Path())
	require.NoError(t, err)
	return string(data)
}

func TestDebugLogPath(t *testing.T) {
	path, err := DebugLogPath("logs", "opr", sessionStart)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("logs", "2024_03", "2024_03_05_14h07m09s_opr.log"), path)
}

func TestSetupLogging_DefaultDocument(t *testing.T) {
	f := setup(t, newViper())
	s := f.session

	require.NotNil(t, s.ConsoleHandler())
	require.NotNil(t, s.DebugHandler())
	require.NotNil(t, s.ObjectFilter())
	assert.Equal(t, filepath.Join(f.dir, "2024_03", "2024_03_05_14h07m09s_opr.log"), s.DebugHandler().Path())
	assert.Equal(t, level.Info, s.ConsoleHandler().Level())
	assert.Equal(t, level.Fine, s.DebugHandler().Level())
	assert.Equal(t, level.Fine, f.manager.Root().Level())
	assert.Empty(t, f.stdout.String(), "setup chatter stays below the console level")

	lg := s.Logger("hutch.beamline")
	lg.Info("ready")
	lg.Fine("details")
	lg.Log(level.Level(1), "noise")

	out := f.stdout.String()
	assert.Equal(t, "INFO     TestSetupLogging_DefaultDocument  ready\n", out)

	file := f.debugLog(t)
	assert.Contains(t, file, "Effective logging configuration:")
	assert.Contains(t, file, "backupcount: 10")
	assert.Contains(t, file, "  ready\n")
	assert.Contains(t, file, "TestSetupLogging_DefaultDocument Level 5   details")
	assert.NotContains(t, file, "noise")

	var readyLine string
	for _, line := range strings.Split(file, "\n") {
		if strings.HasSuffix(line, " ready") {
			readyLine = line
		}
	}
	require.NotEmpty(t, readyLine)
	assert.Regexp(t, `^\d{4}-\d\d-\d\d \d\d:\d\d:\d\d - PID \d+ +app_test\.go: \d+ +TestSetupLogging_DefaultDocument INFO      ready$`, readyLine)
}

func TestSetupLogging_ObjectFilter(t *testing.T) {
	f := setup(t, newViper())
	objects := f.session.ObjectFilter()
	objects.Track("motor1")

	f.session.Logger("ophyd").ForObject("motor1").Fine("tracked fine")
	f.session.Logger("ophyd").ForObject("motor1").Debug("tracked debug")
	f.session.Logger("ophyd").ForObject("motor2").Fine("untracked fine")
	f.session.Logger("ophyd").ForObject("motor1").Warning("tracked warning")

	file := f.debugLog(t)
	assert.NotContains(t, file, "motor1 tracked fine")
	assert.Contains(t, file, "motor1 tracked debug")
	assert.Contains(t, file, "motor2 untracked fine")
	assert.Contains(t, file, "motor1 tracked warning")
	assert.Equal(t, "WARNING  TestSetupLogging_ObjectFilter motor1 tracked warning\n", f.stdout.String())

	objects.Untrack("motor1")
	f.session.Logger("ophyd").ForObject("motor1").Fine("released")
	assert.Contains(t, f.debugLog(t), "motor1 released")
}

func TestSetupLogging_ConsoleControls(t *testing.T) {
	f := setup(t, newViper())
	lg := f.session.Logger("hutch")

	lg.Debug("hidden")
	require.NoError(t, f.session.DebugMode(true))
	assert.Equal(t, level.Debug, f.session.ConsoleHandler().Level())
	lg.Debug("shown")
	require.NoError(t, f.session.DebugMode(false))
	lg.Debug("hidden again")
	require.NoError(t, f.session.SetConsoleLevel(level.Error))
	lg.Warning("quiet warning")

	assert.Equal(t, "DEBUG    TestSetupLogging_ConsoleControls  shown\n", f.stdout.String())
}

func TestSetupLogging_Slog(t *testing.T) {
	f := setup(t, newViper())
	f.session.Slog("hutch.slog").Info("via slog", "ophyd_object_name", "m1")
	assert.Equal(t, "INFO     TestSetupLogging_Slog m1 via slog\n", f.stdout.String())
}

func TestSetupLogging_Overrides(t *testing.T) {
	t.Setenv("HUTCH_LOG_CONSOLE_LEVEL", "WARNING")
	v := config.NewViper()
	v.Set("formatters::custom::colors", false)
	logFile := filepath.Join(t.TempDir(), "explicit.log")
	v.Set(config.KeyLogFile, logFile)

	f := setup(t, v)
	assert.Equal(t, logFile, f.session.DebugHandler().Path())
	assert.Equal(t, level.Warning, f.session.ConsoleHandler().Level())

	f.session.Logger("hutch").Info("file only")
	assert.Empty(t, f.stdout.String())
	assert.Contains(t, f.debugLog(t), "file only")
}

func TestSetupLogging_Rotation(t *testing.T) {
	v := newViper()
	v.Set("handlers::debug::maxbytes", handler.MiB)
	v.Set("handlers::debug::backupcount", 2)
	f := setup(t, v)

	line := strings.Repeat("x", 1023)
	lg := f.session.Logger("hutch.bulk")
	for i := 0; i < 3500; i++ {
		lg.Fine("%s", line)
	}

	debugH := f.session.DebugHandler()
	assert.Equal(t, int64(handler.MiB), debugH.Options().MaxBytes)
	backups, err := debugH.Backups()
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
	assert.Eventually(t, func() bool {
		backups, err := debugH.Backups()
		return err == nil && len(backups) <= 2
	}, 5*time.Second, 50*time.Millisecond)

	info, err := os.Stat(debugH.Path())
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(handler.MiB))
}

func TestSetupLogging_MissingConfigFile(t *testing.T) {
	v := newViper()
	v.Set(config.KeyConfigFile, filepath.Join(t.TempDir(), "nope.yml"))
	mgr := log.NewManager()

	_, err := SetupLogging(context.Background(), v, Options{Manager: mgr, Stderr: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigNotFound, apperrors.GetCode(err))
	msg, _, userFacing := apperrors.GetUserFacingMessage(err)
	assert.True(t, userFacing)
	assert.Contains(t, msg, "nope.yml")
	assert.Empty(t, mgr.Root().Handlers())
}

func TestSession_Shutdown(t *testing.T) {
	f := setup(t, newViper())
	require.NoError(t, f.session.Shutdown(context.Background()))
	assert.Empty(t, f.manager.Root().Handlers())
	require.NoError(t, f.session.Shutdown(context.Background()))
}
