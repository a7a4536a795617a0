// Package format renders log records into lines using "%(key)s" templates.
package format

import (
	"fmt"

	"github.com/lestrrat-go/strftime"

	"github.com/olusolaa/hutchlog/internal/record"
)

// DefaultFormat is used when a handler has no formatter configured.
const DefaultFormat = "%(message)s"

// Formatter converts a record into a single display string without a
// trailing newline.
type Formatter interface {
	Format(rec *record.Record) string
}

// DefaultFormatter renders a template with an optional strftime date format
// for asctime. When the record carries an error, its text follows the line.
type DefaultFormatter struct {
	tmpl     *Template
	datefmt  string
	strftime *strftime.Strftime
	decorate Decorator
}

func NewDefault(format, datefmt string) (*DefaultFormatter, error) {
	if format == "" {
		format = DefaultFormat
	}
	tmpl, err := Compile(format)
	if err != nil {
		return nil, err
	}
	f := &DefaultFormatter{tmpl: tmpl, datefmt: datefmt}
	if datefmt != "" {
		f.strftime, err = strftime.New(datefmt)
		if err != nil {
			return nil, fmt.Errorf("datefmt %q: %w", datefmt, err)
		}
	}
	return f, nil
}

func (f *DefaultFormatter) Template() *Template { return f.tmpl }

func (f *DefaultFormatter) DateFormat() string { return f.datefmt }

// FormatTime renders the record time with datefmt, or as
// "2006-01-02 15:04:05,000" when no datefmt was given.
func (f *DefaultFormatter) FormatTime(rec *record.Record) string {
	if f.strftime != nil {
		return f.strftime.FormatString(rec.Time)
	}
	return fmt.Sprintf("%s,%03d", rec.Time.Format("2006-01-02 15:04:05"), rec.Msecs())
}

func (f *DefaultFormatter) Format(rec *record.Record) string {
	var asctime string
	if f.tmpl.UsesTime() {
		asctime = f.FormatTime(rec)
	}
	line := f.tmpl.Execute(rec, asctime, f.decorate)
	if rec.Err != nil {
		line += "\n" + rec.Err.Error()
	}
	return line
}
