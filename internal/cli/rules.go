package cli

import (
	"io"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/pkg/extract"
	"github.com/kagent-dev/agentcheck/pkg/validate"
)

type ruleRow struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

// RulesCmd lists the extraction table used by the API-server normalizer and
// the built-in expectation kinds.
func RulesCmd(w io.Writer, cfg *config.Config) error {
	registry := extract.Default()

	var rows []ruleRow
	for _, name := range registry.Functions() {
		rows = append(rows, ruleRow{Table: "function", Name: name})
	}
	for _, name := range registry.Authors() {
		rows = append(rows, ruleRow{Table: "author", Name: name})
	}
	for _, kind := range validate.Kinds() {
		rows = append(rows, ruleRow{Table: "expectations", Name: kind})
	}

	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, []string{r.Table, r.Name})
	}
	return printOutput(w, cfg.OutputFormat, rows, []string{"Table", "Name"}, tableRows)
}
