// Package output renders command results and resource listings in
// table, YAML and JSON formats.
package output

import "fmt"

// Format selects an output format.
type Format string

const (
	// FormatTable is the human-readable default.
	FormatTable Format = "table"
	// FormatYAML renders documents suitable for apply files.
	FormatYAML Format = "yaml"
	// FormatJSON renders machine-readable records.
	FormatJSON Format = "json"
)

// Formatter renders a value to a string. Table formatting requires the
// value to be a Table or implement Tabler; YAML and JSON accept any
// marshalable value.
type Formatter interface {
	Format(v any) (string, error)
}

// Options configures formatter construction.
type Options struct {
	Format Format

	// NoHeaders omits the header row in table format.
	NoHeaders bool
}

// NewFormatter creates a formatter for the requested format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks a format string before any work happens.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
