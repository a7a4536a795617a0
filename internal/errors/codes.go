package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"
	CodeConfigNotFound   Code = "CONFIG_NOT_FOUND"
	CodeUnresolvedRef    Code = "UNRESOLVED_REFERENCE"
	CodeInvalidLevel     Code = "INVALID_LEVEL"
	CodeUnknownFactory   Code = "UNKNOWN_FACTORY"
	CodeHandlerOpenError Code = "HANDLER_OPEN_ERROR"
	CodeHandlerClose     Code = "HANDLER_CLOSE_ERROR"
)

func (c Code) String() string {
	return string(c)
}
