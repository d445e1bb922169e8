package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is aligned plain text (default).
	FormatText OutputFormat = "text"
	// FormatJSON is an array of objects keyed by lower-cased header.
	FormatJSON OutputFormat = "json"
	// FormatYAML is the YAML rendering of the JSON form.
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
	}
}

// Table is tabular command output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates an empty table with headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Append adds a row. Missing cells are left empty.
func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Records returns each row as a map keyed by lower-cased header.
func (t *Table) Records() []map[string]string {
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			rec[strings.ToLower(h)] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// Formatter writes a table to w.
type Formatter interface {
	Write(w io.Writer, t *Table) error
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return jsonFormatter{}
	case FormatYAML:
		return yamlFormatter{}
	default:
		return textFormatter{}
	}
}

type textFormatter struct{}

func (textFormatter) Write(w io.Writer, t *Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

type jsonFormatter struct{}

func (jsonFormatter) Write(w io.Writer, t *Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.Records())
}

type yamlFormatter struct{}

func (yamlFormatter) Write(w io.Writer, t *Table) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.Records()); err != nil {
		return err
	}
	return enc.Close()
}
