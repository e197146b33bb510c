package output

import (
	"encoding/json"
	"fmt"
)

// JSONFormatter renders values as indented JSON.
type JSONFormatter struct{}

// Format renders v as JSON with a trailing newline.
func (f *JSONFormatter) Format(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}
