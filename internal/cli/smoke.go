package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/internal/metrics"
	"github.com/kagent-dev/agentcheck/pkg/adapter"
	"github.com/kagent-dev/agentcheck/pkg/validate"
)

type SmokeCfg struct {
	Config   *config.Config
	Metrics  *metrics.Metrics
	Parallel int
}

type smokeRow struct {
	Name     string   `json:"name"`
	Mode     string   `json:"mode"`
	URL      string   `json:"url"`
	Kind     string   `json:"kind"`
	Outcome  string   `json:"outcome"`
	Pass     bool     `json:"pass"`
	Duration string   `json:"duration"`
	Failures []string `json:"failures,omitempty"`
}

// SmokeCmd calls every configured target in parallel, validates each answer
// against the built-in expectations for its kind and prints a summary.
func SmokeCmd(ctx context.Context, w io.Writer, cfg *SmokeCfg) error {
	targets := cfg.Config.SmokeTargets()
	calls := make([]adapter.Call, 0, len(targets))
	expectations := make([]validate.Expectations, 0, len(targets))
	sc := newSession(cfg.Config, "")

	for _, t := range targets {
		a, err := newAdapter(cfg.Config, cfg.Metrics, Target{Mode: t.Mode, URL: t.URL, App: t.App})
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
		exp, err := validate.Builtin(firstNonEmpty(t.Kind, validate.KindGeneric))
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
		calls = append(calls, adapter.Call{Name: t.Name, Adapter: a, Request: adapter.NewRequest(sc, firstNonEmpty(t.Message, "Hello"))})
		expectations = append(expectations, exp)
	}

	results := adapter.FanOut(ctx, calls, cfg.Parallel)

	var (
		errs *multierror.Error
		view []smokeRow
		rows [][]string
	)
	for i, r := range results {
		result := validate.ValidateCall(r.Response, r.Err, expectations[i])
		if cfg.Metrics != nil {
			cfg.Metrics.ObserveValidation(expectations[i].Kind, result.Pass)
		}
		row := smokeRow{
			Name:     r.Call.Name,
			Mode:     targets[i].Mode,
			URL:      targets[i].URL,
			Kind:     expectations[i].Kind,
			Outcome:  adapter.OutcomeOf(r.Err),
			Pass:     result.Pass,
			Duration: r.Duration.Round(time.Millisecond).String(),
			Failures: result.Messages(),
		}
		view = append(view, row)

		status := passColor.Sprint("PASS")
		detail := ""
		if !result.Pass {
			status = failColor.Sprint("FAIL")
			detail = result.Failures[0].String()
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", r.Call.Name, result.Err()))
		}
		rows = append(rows, []string{row.Name, row.Mode, row.Kind, row.Outcome, status, row.Duration, detail})
	}

	if err := printOutput(w, cfg.Config.OutputFormat, view,
		[]string{"Target", "Mode", "Kind", "Outcome", "Result", "Duration", "Detail"}, rows); err != nil {
		return err
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}
