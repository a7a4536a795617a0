package handler

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/olusolaa/hutchlog/internal/record"
)

// ErrorReporter writes "--- Logging error ---" blocks when a handler cannot
// emit a record. Reports are throttled: the first few always print, then at
// most one per interval. Failures are counted either way.
type ErrorReporter struct {
	mu        sync.Mutex
	out       io.Writer
	sometimes *rate.Sometimes
	failures  atomic.Int64
}

var (
	defaultReporterOnce sync.Once
	defaultReporter     *ErrorReporter
)

func DefaultErrorReporter() *ErrorReporter {
	defaultReporterOnce.Do(func() {
		defaultReporter = NewErrorReporter(os.Stderr)
	})
	return defaultReporter
}

func NewErrorReporter(out io.Writer) *ErrorReporter {
	return &ErrorReporter{
		out:       out,
		sometimes: &rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

func (r *ErrorReporter) Report(handlerName string, rec *record.Record, err error) {
	r.failures.Add(1)
	r.sometimes.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		fmt.Fprintf(r.out, "--- Logging error ---\n")
		fmt.Fprintf(r.out, "handler %q: %v\n", handlerName, err)
		fmt.Fprintf(r.out, "Logged from file %s, line %d\n", rec.Filename(), rec.Line)
		fmt.Fprintf(r.out, "Message: %q\n", truncateMessage(rec.Message))
	})
}

// maxReportedRunes bounds the message echoed in a report so an oversized
// record does not flood stderr.
const maxReportedRunes = 200

func truncateMessage(msg string) string {
	if utf8.RuneCountInString(msg) <= maxReportedRunes {
		return msg
	}
	runes := []rune(msg)
	return fmt.Sprintf("%s... (%d more characters)", string(runes[:maxReportedRunes]), len(runes)-maxReportedRunes)
}

// Failures is the number of emit errors seen, reported or not.
func (r *ErrorReporter) Failures() int64 {
	return r.failures.Load()
}
