package config

import (
	"bytes"
	_ "embed"
	"errors"
	"io/fs"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	apperrors "github.com/olusolaa/hutchlog/internal/errors"
	"github.com/olusolaa/hutchlog/internal/level"
)

//go:embed logging.yml
var defaultYAML []byte

// Viper keys that sit beside the document. They are bound to flags by
// BindFlags and to HUTCH_LOG_* environment variables by NewViper.
const (
	KeyConfigFile   = "log_config"
	KeyLogDir       = "log_dir"
	KeyLogFile      = "log_file"
	KeyConsoleLevel = "console_level"
)

const EnvPrefix = "HUTCH_LOG"

// DefaultYAML returns a copy of the embedded default document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultYAML)
}

// KeyDelimiter separates nested viper keys. Logger names are dotted, so the
// usual "." cannot be used.
const KeyDelimiter = "::"

// New returns a viper instance that keeps dotted logger names intact. Viper
// still lower-cases every key, so component and logger names in a document
// are effectively lower case.
func New() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
}

// NewViper is New plus HUTCH_LOG_* environment variables, e.g.
// HUTCH_LOG_CONSOLE_LEVEL or HUTCH_LOG_HANDLERS_DEBUG_BACKUPCOUNT.
func NewViper() *viper.Viper {
	v := New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(KeyDelimiter, "_"))
	v.AutomaticEnv()
	return v
}

var levelType = reflect.TypeOf(level.Level(0))

// LevelHook decodes level names, numeric strings and numbers into level.Level.
func LevelHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != levelType {
			return data, nil
		}
		return level.Parse(data)
	}
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		LevelHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load reads the document named by the log_config key, or the embedded
// default when no file is configured, applies the console_level and log_file
// shortcuts and validates the result.
func Load(v *viper.Viper) (*Document, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, apperrors.WrapUserFacing(err, apperrors.CodeConfigNotFound, "logging configuration file not found: "+path, "Check --log-config or HUTCH_LOG_LOG_CONFIG.")
			}
			return nil, apperrors.WrapUserFacing(err, apperrors.CodeConfigReadError, "failed to read logging configuration: "+path, "Check the file is valid YAML.")
		}
	} else {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to read embedded logging configuration")
		}
	}

	doc := &Document{}
	if err := v.Unmarshal(doc, viper.DecodeHook(decodeHook())); err != nil {
		return nil, apperrors.WrapUserFacing(err, apperrors.CodeConfigParseError, "failed to decode logging configuration", "Check level values and parameter types.")
	}

	if err := applyShortcuts(v, doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Parse decodes a YAML document without any environment or flag overrides.
func Parse(data []byte) (*Document, error) {
	v := New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, apperrors.WrapUserFacing(err, apperrors.CodeConfigReadError, "failed to read logging configuration", "Check the document is valid YAML.")
	}
	doc := &Document{}
	if err := v.Unmarshal(doc, viper.DecodeHook(decodeHook())); err != nil {
		return nil, apperrors.WrapUserFacing(err, apperrors.CodeConfigParseError, "failed to decode logging configuration", "Check level values and parameter types.")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func applyShortcuts(v *viper.Viper, doc *Document) error {
	if raw := v.GetString(KeyConsoleLevel); raw != "" {
		lvl, err := level.ParseString(raw)
		if err != nil {
			return apperrors.WrapUserFacing(err, apperrors.CodeInvalidLevel, "invalid console level "+raw, "Use a level name such as INFO or a number such as 5.")
		}
		h, ok := doc.Handlers[ConsoleHandler]
		if !ok {
			return apperrors.NewUserFacing(apperrors.CodeConfigValidation, "console level given but the document has no 'console' handler", "")
		}
		h.Level = lvl
		doc.Handlers[ConsoleHandler] = h
	}
	if path := v.GetString(KeyLogFile); path != "" {
		h, ok := doc.Handlers[DebugHandler]
		if !ok {
			return apperrors.NewUserFacing(apperrors.CodeConfigValidation, "log file given but the document has no 'debug' handler", "")
		}
		h.Params = SetParam(h.Params, "filename", path)
		doc.Handlers[DebugHandler] = h
	}
	return nil
}
