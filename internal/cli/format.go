package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kagent-dev/agentcheck/pkg/normalize"
)

type OutputFormat string

const (
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

const wrapWidth = 100

var (
	passColor = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	keyColor  = color.New(color.FgCyan)

	titleCaser = cases.Title(language.English)
)

func printOutput(w io.Writer, format string, data any, tableHeaders []string, tableRows [][]string) error {
	switch OutputFormat(format) {
	case OutputFormatJSON:
		return printJSON(w, data)
	case OutputFormatTable, "":
		tw := table.NewWriter()
		headers := make(table.Row, len(tableHeaders))
		for i, h := range tableHeaders {
			headers[i] = h
		}
		tw.AppendHeader(headers)
		for _, row := range tableRows {
			r := make(table.Row, len(row))
			for i, cell := range row {
				r[i] = cell
			}
			tw.AppendRow(r)
		}
		fmt.Fprintln(w, tw.Render())
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting JSON: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

// responseView is the JSON shape of a printed response.
type responseView struct {
	*normalize.AgentResponse
	Raw json.RawMessage `json:"raw,omitempty"`
}

func printResponse(w io.Writer, format string, resp *normalize.AgentResponse, verbose bool) error {
	if OutputFormat(format) == OutputFormatJSON {
		view := responseView{AgentResponse: resp}
		if verbose && json.Valid(resp.Raw) {
			view.Raw = resp.Raw
		}
		return printJSON(w, view)
	}

	rows := [][]string{
		{"source_mode", string(resp.SourceMode)},
		{"message", wordwrap.String(resp.Message, wrapWidth)},
	}
	rows = append(rows, flatten("data", resp.Data)...)
	if len(resp.Rules) > 0 {
		rows = append(rows, []string{"rules", strings.Join(resp.Rules, ", ")})
	}
	if err := printOutput(w, format, nil, []string{"Field", "Value"}, rows); err != nil {
		return err
	}
	if verbose {
		printRaw(w, resp.Raw)
	}
	return nil
}

// flatten renders nested data as dotted key/value rows in key order.
func flatten(prefix string, v any) [][]string {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 0 {
			return [][]string{{prefix, "{}"}}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var rows [][]string
		for _, k := range keys {
			rows = append(rows, flatten(prefix+"."+k, t[k])...)
		}
		return rows
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = fmt.Sprint(item)
		}
		return [][]string{{prefix, strings.Join(parts, ", ")}}
	case string:
		if strings.HasSuffix(prefix, ".sentiment") {
			return [][]string{{prefix, sentimentLabel(t)}}
		}
		return [][]string{{prefix, wordwrap.String(t, wrapWidth)}}
	default:
		return [][]string{{prefix, fmt.Sprint(t)}}
	}
}

func sentimentLabel(s string) string {
	label := titleCaser.String(strings.ToLower(s))
	switch strings.ToLower(s) {
	case "positive":
		return color.GreenString(label)
	case "negative":
		return color.RedString(label)
	case "neutral":
		return color.YellowString(label)
	default:
		return label
	}
}

// printRaw prints the undecoded wire payload, indented when it is JSON.
func printRaw(w io.Writer, raw []byte) {
	keyColor.Fprintln(w, "Raw response:")
	if len(bytes.TrimSpace(raw)) == 0 {
		warnColor.Fprintln(w, "(empty)")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err == nil {
		fmt.Fprintln(w, buf.String())
		return
	}
	fmt.Fprintln(w, wordwrap.String(string(raw), wrapWidth))
}
