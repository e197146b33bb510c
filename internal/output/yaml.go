package output

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders values as YAML documents.
type YAMLFormatter struct{}

// Format renders v as YAML.
func (f *YAMLFormatter) Format(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}
