package config

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// Dump renders the effective document as "yaml" or "json".
func Dump(doc *Document, format string) ([]byte, error) {
	m := doc.AsMap()
	switch format {
	case "", "yaml", "yml":
		return yaml.Marshal(m)
	case "json":
		return jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(m, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported dump format %q", format)
	}
}
