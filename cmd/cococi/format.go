package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ghodss/yaml"
)

const (
	outputFormatTable = "tab"
	outputFormatJSON  = "json"
	outputFormatYAML  = "yaml"
)

var validOutputFormats = []string{outputFormatTable, outputFormatJSON, outputFormatYAML}

func outputFormatIsValid(format string) bool {
	for _, f := range validOutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

func outputFormatHelp() string {
	return "output format (one of " + strings.Join(validOutputFormats, ", ") + ")"
}

func newTabwriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
}

// printStructured writes v as JSON or YAML. The YAML is converted
// from the JSON encoding, so field names are the same in both.
func printStructured(out io.Writer, format string, v interface{}) error {
	switch format {
	case outputFormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputFormatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	}
	return fmt.Errorf("no structured output for format %q", format)
}

func makeExample(examples ...string) string {
	var buf strings.Builder
	for i, ex := range examples {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString("  " + ex)
	}
	return buf.String()
}
