package main

import (
	"encoding/json"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// writeOutput encodes data as JSON or YAML, or prints header and rows as a
// table.
func writeOutput(w io.Writer, format string, data any, header []string, rows [][]string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		table := tablewriter.NewWriter(w)
		table.Header(toAny(header)...)
		for _, row := range rows {
			if err := table.Append(toAny(row)...); err != nil {
				return err
			}
		}
		return table.Render()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
