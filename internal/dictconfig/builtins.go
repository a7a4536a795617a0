package dictconfig

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/olusolaa/hutchlog/internal/config"
	"github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/filter"
	"github.com/olusolaa/hutchlog/internal/format"
	"github.com/olusolaa/hutchlog/internal/handler"
	"github.com/olusolaa/hutchlog/internal/level"
)

// Factory and class names understood by DefaultRegistry.
const (
	ColoredFormatterFactory = "hutch_python.log_setup.ColoredFormatter"
	DefaultFormatterFactory = "hutch_python.log_setup.DefaultFormatter"
	PlainFormatterFactory   = "logging.Formatter"

	ObjectFilterFactory  = "hutch_python.log_setup.ObjectFilter"
	DefaultFilterFactory = "logging.Filter"

	StreamHandlerClass       = "logging.StreamHandler"
	RotatingFileHandlerClass = "logging.handlers.RotatingFileHandler"
	FileHandlerClass         = "logging.FileHandler"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func registerBuiltins(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.RegisterFormatter(DefaultFormatterFactory, newDefaultFormatter))
	must(r.RegisterFormatter(PlainFormatterFactory, newDefaultFormatter))
	must(r.RegisterFormatter(ColoredFormatterFactory, newColoredFormatter))

	must(r.RegisterFilter(ObjectFilterFactory, newObjectFilter))
	must(r.RegisterFilter(DefaultFilterFactory, newNameFilter))

	must(r.RegisterHandler(StreamHandlerClass, newStreamHandler))
	must(r.RegisterHandler(RotatingFileHandlerClass, newRotatingFileHandler))
	must(r.RegisterHandler(FileHandlerClass, newFileHandler))
}

// decodeParams maps document parameters onto out. Keys match field tags
// case-insensitively, scalars are weakly typed (env overrides arrive as
// strings) and unknown keys are an error.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			config.LevelHook(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(params); err != nil {
		return err
	}
	if err := validate.Struct(out); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("'%s' failed on '%s' (value: '%v')", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid parameters: %s", strings.Join(problems, "; "))
		}
		return err
	}
	return nil
}

type formatterParams struct {
	Format  string `mapstructure:"format"`
	Fmt     string `mapstructure:"fmt" validate:"excluded_with=Format"`
	Datefmt string `mapstructure:"datefmt"`
	Style   string `mapstructure:"style" validate:"omitempty,eq=%"`
	Colors  *bool  `mapstructure:"colors"`
}

func (p formatterParams) template() string {
	if p.Format != "" {
		return p.Format
	}
	return p.Fmt
}

func newDefaultFormatter(params map[string]any) (format.Formatter, error) {
	var p formatterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.Colors != nil {
		return nil, fmt.Errorf("'colors' is only valid for %s", ColoredFormatterFactory)
	}
	return format.NewDefault(p.template(), p.Datefmt)
}

func newColoredFormatter(params map[string]any) (format.Formatter, error) {
	var p formatterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return format.NewColored(p.template(), p.Datefmt, p.Colors)
}

type objectFilterParams struct {
	AllowOtherMessages *bool        `mapstructure:"allow_other_messages"`
	Level              *level.Level `mapstructure:"level"`
	Objects            []string     `mapstructure:"objects" validate:"dive,required"`
}

func newObjectFilter(params map[string]any) (filter.Filter, error) {
	var p objectFilterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	allow := true
	if p.AllowOtherMessages != nil {
		allow = *p.AllowOtherMessages
	}
	lvl := level.Warning
	if p.Level != nil {
		lvl = *p.Level
	}
	return filter.NewObjectFilter(lvl, allow, p.Objects...), nil
}

type nameFilterParams struct {
	Name string `mapstructure:"name"`
}

func newNameFilter(params map[string]any) (filter.Filter, error) {
	var p nameFilterParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return filter.NewNameFilter(p.Name), nil
}

type streamParams struct {
	Stream string `mapstructure:"stream" validate:"omitempty,oneof=ext://sys.stdout ext://sys.stderr stdout stderr"`
}

func newStreamHandler(env Env, name string, params map[string]any) (handler.Handler, error) {
	var p streamParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	var w io.Writer
	switch p.Stream {
	case "ext://sys.stdout", "stdout":
		w = env.Stdout
	default:
		w = env.Stderr
	}
	return handler.NewStream(name, w, env.Reporter), nil
}

type fileParams struct {
	Filename    string `mapstructure:"filename" validate:"required"`
	MaxBytes    int64  `mapstructure:"maxBytes" validate:"gte=0"`
	BackupCount int    `mapstructure:"backupCount" validate:"gte=0"`
	Mode        string `mapstructure:"mode" validate:"omitempty,oneof=a w"`
	Delay       bool   `mapstructure:"delay"`
	Encoding    string `mapstructure:"encoding" validate:"omitempty,oneof=utf-8 utf8 UTF-8"`
}

func (p fileParams) options() handler.RotatingFileOptions {
	return handler.RotatingFileOptions{
		Filename:    p.Filename,
		MaxBytes:    p.MaxBytes,
		BackupCount: p.BackupCount,
		Mode:        p.Mode,
		Delay:       p.Delay,
	}
}

func newRotatingFileHandler(env Env, name string, params map[string]any) (handler.Handler, error) {
	var p fileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.MaxBytes%handler.MiB != 0 {
		return nil, fmt.Errorf("maxBytes must be a multiple of %d, got %d", handler.MiB, p.MaxBytes)
	}
	h, err := handler.NewRotatingFile(name, p.options(), env.Reporter)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeHandlerOpenError, "failed to open log file "+p.Filename, "Check the log directory exists or can be created and is writable.")
	}
	return h, nil
}

// newFileHandler is a RotatingFileHandler that never rolls over.
func newFileHandler(env Env, name string, params map[string]any) (handler.Handler, error) {
	var p fileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.MaxBytes != 0 || p.BackupCount != 0 {
		return nil, fmt.Errorf("%s does not rotate; use %s", FileHandlerClass, RotatingFileHandlerClass)
	}
	h, err := handler.NewRotatingFile(name, p.options(), env.Reporter)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeHandlerOpenError, "failed to open log file "+p.Filename, "Check the log directory exists or can be created and is writable.")
	}
	return h, nil
}
