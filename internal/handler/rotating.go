package handler

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const MiB = 1 << 20

var ErrRotationDisabled = errors.New("rotation is disabled for this handler")

type RotatingFileOptions struct {
	Filename string
	// MaxBytes is the size a file may reach before it is rolled over. Zero
	// disables rotation; otherwise it must be a whole number of MiB.
	MaxBytes int64
	// BackupCount rotated files are kept; the oldest beyond that are removed.
	// Zero disables rotation.
	BackupCount int
	// Mode is "a" to append to an existing file or "w" to truncate it.
	Mode string
	// Delay defers opening the file until the first record is written.
	Delay bool
}

func (o RotatingFileOptions) validate() error {
	if o.Filename == "" {
		return errors.New("filename is required")
	}
	if o.MaxBytes < 0 {
		return fmt.Errorf("maxBytes must not be negative, got %d", o.MaxBytes)
	}
	if o.MaxBytes%MiB != 0 {
		return fmt.Errorf("maxBytes must be a multiple of %d bytes, got %d", MiB, o.MaxBytes)
	}
	if o.BackupCount < 0 {
		return fmt.Errorf("backupCount must not be negative, got %d", o.BackupCount)
	}
	switch o.Mode {
	case "", "a", "w":
	default:
		return fmt.Errorf("unsupported mode %q (want \"a\" or \"w\")", o.Mode)
	}
	return nil
}

func (o RotatingFileOptions) rotates() bool {
	return o.MaxBytes > 0 && o.BackupCount > 0
}

type fileWriter interface {
	io.WriteCloser
	open() error
	rotate() error
}

// RotatingFileHandler appends lines to a file, rolling it over once a write
// would take it past MaxBytes and keeping at most BackupCount old files.
type RotatingFileHandler struct {
	*Base
	opts RotatingFileOptions
	path string
	w    fileWriter
}

func NewRotatingFile(name string, opts RotatingFileOptions, reporter *ErrorReporter) (*RotatingFileHandler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	path, err := filepath.Abs(opts.Filename)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Filename, err)
	}
	if opts.Mode == "w" {
		if err := os.Truncate(path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
	}

	h := &RotatingFileHandler{opts: opts, path: path}
	if opts.rotates() {
		h.w = &lumberjackWriter{
			Logger: &lumberjack.Logger{
				Filename:   path,
				MaxSize:    int(opts.MaxBytes / MiB),
				MaxBackups: opts.BackupCount,
				LocalTime:  true,
			},
			max: opts.MaxBytes,
		}
	} else {
		h.w = &appendWriter{path: path}
	}
	h.Base = newBase(name, reporter, func(line []byte) error {
		_, err := h.w.Write(line)
		return err
	})

	if !opts.Delay {
		if err := h.w.open(); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}
	return h, nil
}

func (h *RotatingFileHandler) Path() string { return h.path }

func (h *RotatingFileHandler) Options() RotatingFileOptions { return h.opts }

// Rotate forces a rollover.
func (h *RotatingFileHandler) Rotate() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w.rotate()
}

// Backups lists rotated files for this handler, oldest first.
func (h *RotatingFileHandler) Backups() ([]string, error) {
	ext := filepath.Ext(h.path)
	prefix := strings.TrimSuffix(filepath.Base(h.path), ext) + "-"
	entries, err := os.ReadDir(filepath.Dir(h.path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ext) {
			continue
		}
		out = append(out, filepath.Join(filepath.Dir(h.path), n))
	}
	sort.Strings(out)
	return out, nil
}

func (h *RotatingFileHandler) Flush() error {
	return nil
}

func (h *RotatingFileHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w.Close()
}

type lumberjackWriter struct {
	*lumberjack.Logger
	max int64
	// rollNext is set after an oversized line was appended to the active
	// file, so the next write starts a fresh one.
	rollNext bool
}

func (w *lumberjackWriter) Write(p []byte) (int, error) {
	if w.rollNext {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	if int64(len(p)) <= w.max {
		return w.Logger.Write(p)
	}
	return w.writeOversized(p)
}

// writeOversized handles a line longer than MaxBytes, which lumberjack
// refuses. The line gets a file of its own: the active file is rolled over if
// it holds anything, the line is appended directly, and the file is rolled
// over again on the next write.
func (w *lumberjackWriter) writeOversized(p []byte) (int, error) {
	if info, err := os.Stat(w.Filename); err == nil && info.Size() > 0 {
		if err := w.Logger.Rotate(); err != nil {
			return 0, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(w.Filename), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(w.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(p)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	w.rollNext = true
	return n, err
}

// open forces lumberjack to open (or create) the file; a zero-length write
// opens without writing.
func (w *lumberjackWriter) open() error {
	_, err := w.Logger.Write(nil)
	return err
}

func (w *lumberjackWriter) rotate() error {
	w.rollNext = false
	return w.Logger.Rotate()
}

type appendWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func (w *appendWriter) open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.openLocked()
}

func (w *appendWriter) openLocked() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	return nil
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.openLocked(); err != nil {
		return 0, err
	}
	return w.f.Write(p)
}

func (w *appendWriter) rotate() error {
	return ErrRotationDisabled
}

func (w *appendWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
