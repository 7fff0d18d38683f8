package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// outputFormat resolves the --output flag.  Without one, people get a
// table and pipes get JSON.
func outputFormat(flag string, out *os.File) (string, error) {
	switch flag {
	case outputTable, outputJSON, outputYAML:
		return flag, nil
	case "":
		if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
			return outputTable, nil
		}
		return outputJSON, nil
	}

	return "", fmt.Errorf("unknown output format `%s`, expected table, json or yaml", flag)
}

// render writes v in the chosen format; table draws the table form
func render(w io.Writer, format string, v interface{}, table func(tw *tabwriter.Writer)) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(v)

	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}
