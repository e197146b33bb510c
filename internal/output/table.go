package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// Table is a rendered listing: one header row and zero or more data
// rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Tabler is implemented by values that can render themselves as a
// table.
type Tabler interface {
	AsTable() Table
}

// TableFormatter renders Tables with aligned columns.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// Format renders v, which must be a Table or a Tabler.
func (f *TableFormatter) Format(v any) (string, error) {
	var table Table
	switch t := v.(type) {
	case Table:
		table = t
	case Tabler:
		table = t.AsTable()
	default:
		return "", fmt.Errorf("value of type %T has no table form, use -o yaml or -o json", v)
	}

	if len(table.Rows) == 0 {
		return "No resources found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		fmt.Fprintln(w, strings.Join(table.Headers, "\t"))
	}
	for _, row := range table.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return buf.String(), nil
}
