// Package config holds the logging document: the declarative description of
// formatters, filters, handlers and loggers that dictconfig turns into live
// objects. The default document is embedded from logging.yml.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/level"
)

// Names used by the default document.
const (
	ConsoleHandler = "console"
	DebugHandler   = "debug"
	ObjectFilter   = "ophyd_object_filter"
)

type Document struct {
	Version                int                      `mapstructure:"version" validate:"eq=1"`
	DisableExistingLoggers bool                     `mapstructure:"disable_existing_loggers"`
	Formatters             map[string]ComponentSpec `mapstructure:"formatters" validate:"dive"`
	Filters                map[string]ComponentSpec `mapstructure:"filters" validate:"dive"`
	Handlers               map[string]HandlerSpec   `mapstructure:"handlers" validate:"dive"`
	Loggers                map[string]LoggerSpec    `mapstructure:"loggers" validate:"dive"`
	Root                   *LoggerSpec              `mapstructure:"root"`
}

// ComponentSpec names a formatter or filter factory under the "()" key. All
// other keys are construction parameters for that factory.
type ComponentSpec struct {
	Factory string         `mapstructure:"()"`
	Params  map[string]any `mapstructure:",remain"`
}

type HandlerSpec struct {
	Class     string         `mapstructure:"class" validate:"required"`
	Level     level.Level    `mapstructure:"level"`
	Formatter string         `mapstructure:"formatter"`
	Filters   []string       `mapstructure:"filters" validate:"dive,required"`
	Params    map[string]any `mapstructure:",remain"`
}

type LoggerSpec struct {
	Level     *level.Level `mapstructure:"level"`
	Handlers  []string     `mapstructure:"handlers" validate:"dive,required"`
	Filters   []string     `mapstructure:"filters" validate:"dive,required"`
	Propagate *bool        `mapstructure:"propagate"`
}

// Param looks up a construction parameter case-insensitively, since viper
// lower-cases keys read from files.
func Param(params map[string]any, key string) (any, bool) {
	if v, ok := params[key]; ok {
		return v, true
	}
	for k, v := range params {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// SetParam replaces a parameter, dropping any differently-cased duplicates.
func SetParam(params map[string]any, key string, v any) map[string]any {
	if params == nil {
		params = make(map[string]any)
	}
	for k := range params {
		if strings.EqualFold(k, key) {
			delete(params, k)
		}
	}
	params[key] = v
	return params
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks struct constraints and that every formatter, filter and
// handler reference resolves within the document.
func (d *Document) Validate() error {
	var problems []string

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(d); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("Field '%s': Failed on '%s' validation (value: '%v')", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	structural := len(problems)

	for _, name := range sortedKeys(d.Handlers) {
		h := d.Handlers[name]
		if h.Formatter != "" {
			if _, ok := d.Formatters[h.Formatter]; !ok {
				problems = append(problems, fmt.Sprintf("handler '%s': unknown formatter '%s'", name, h.Formatter))
			}
		}
		for _, f := range h.Filters {
			if _, ok := d.Filters[f]; !ok {
				problems = append(problems, fmt.Sprintf("handler '%s': unknown filter '%s'", name, f))
			}
		}
	}

	checkLogger := func(label string, spec LoggerSpec) {
		for _, h := range spec.Handlers {
			if _, ok := d.Handlers[h]; !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown handler '%s'", label, h))
			}
		}
		for _, f := range spec.Filters {
			if _, ok := d.Filters[f]; !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown filter '%s'", label, f))
			}
		}
	}
	for _, name := range sortedKeys(d.Loggers) {
		checkLogger(fmt.Sprintf("logger '%s'", name), d.Loggers[name])
	}
	if d.Root != nil {
		checkLogger("root", *d.Root)
	}

	if len(problems) == 0 {
		return nil
	}
	// A document whose only problems are dangling names reports them as such.
	code := apperrors.CodeConfigValidation
	if structural == 0 {
		code = apperrors.CodeUnresolvedRef
	}
	var details strings.Builder
	details.WriteString("Logging configuration validation failed:")
	for _, p := range problems {
		details.WriteString("\n - ")
		details.WriteString(p)
	}
	return apperrors.NewUserFacing(code, details.String(), "Check the logging configuration file and overrides.")
}

// AsMap renders the document as plain nested maps in dictConfig layout.
func (d *Document) AsMap() map[string]any {
	out := map[string]any{
		"version":                  d.Version,
		"disable_existing_loggers": d.DisableExistingLoggers,
	}
	component := func(specs map[string]ComponentSpec) map[string]any {
		m := make(map[string]any, len(specs))
		for name, s := range specs {
			entry := make(map[string]any, len(s.Params)+1)
			for k, v := range s.Params {
				entry[k] = v
			}
			if s.Factory != "" {
				entry["()"] = s.Factory
			}
			m[name] = entry
		}
		return m
	}
	out["formatters"] = component(d.Formatters)
	out["filters"] = component(d.Filters)

	handlers := make(map[string]any, len(d.Handlers))
	for name, h := range d.Handlers {
		entry := make(map[string]any, len(h.Params)+4)
		for k, v := range h.Params {
			entry[k] = v
		}
		entry["class"] = h.Class
		entry["level"] = h.Level
		if h.Formatter != "" {
			entry["formatter"] = h.Formatter
		}
		if len(h.Filters) > 0 {
			entry["filters"] = h.Filters
		}
		handlers[name] = entry
	}
	out["handlers"] = handlers

	loggerMap := func(s LoggerSpec) map[string]any {
		entry := map[string]any{}
		if s.Level != nil {
			entry["level"] = *s.Level
		}
		if len(s.Handlers) > 0 {
			entry["handlers"] = s.Handlers
		}
		if len(s.Filters) > 0 {
			entry["filters"] = s.Filters
		}
		if s.Propagate != nil {
			entry["propagate"] = *s.Propagate
		}
		return entry
	}
	if len(d.Loggers) > 0 {
		loggers := make(map[string]any, len(d.Loggers))
		for name, s := range d.Loggers {
			loggers[name] = loggerMap(s)
		}
		out["loggers"] = loggers
	}
	if d.Root != nil {
		out["root"] = loggerMap(*d.Root)
	}
	return out
}
