package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/internal/metrics"
	"github.com/kagent-dev/agentcheck/pkg/adapter"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/validate"
)

type ValidateCfg struct {
	Config           *config.Config
	Metrics          *metrics.Metrics
	Target           Target
	Kind             string
	ExpectationsFile string
	Message          string
	File             string
	Retries          uint
	Spinner          bool
}

type validationView struct {
	validate.Result
	Response *normalize.AgentResponse `json:"response,omitempty"`
	Raw      string                   `json:"raw"`
}

func loadExpectations(kind, file string) (validate.Expectations, error) {
	if file != "" {
		return validate.LoadExpectations(file)
	}
	return validate.Builtin(kind)
}

// ValidateCmd drives one call and checks the response against the
// expectations for the agent kind. It returns ErrValidationFailed when any
// check fails; the raw response is always printed.
func ValidateCmd(ctx context.Context, w io.Writer, cfg *ValidateCfg) error {
	exp, err := loadExpectations(cfg.Kind, cfg.ExpectationsFile)
	if err != nil {
		return err
	}
	message, err := readMessage(cfg.Message, cfg.File)
	if err != nil {
		return err
	}
	a, err := newAdapter(cfg.Config, cfg.Metrics, cfg.Target)
	if err != nil {
		return err
	}

	resp, callErr := send(ctx, a, adapter.NewRequest(newSession(cfg.Config, ""), message), cfg.Retries, cfg.Spinner)
	result := validate.ValidateCall(resp, callErr, exp)
	if cfg.Metrics != nil {
		cfg.Metrics.ObserveValidation(exp.Kind, result.Pass)
	}
	raw := rawOf(resp, callErr)

	if OutputFormat(cfg.Config.OutputFormat) == OutputFormatJSON {
		if err := printJSON(w, validationView{Result: result, Response: resp, Raw: string(raw)}); err != nil {
			return err
		}
	} else {
		printResult(w, result)
		if resp != nil {
			if err := printResponse(w, cfg.Config.OutputFormat, resp, false); err != nil {
				return err
			}
		}
		printRaw(w, raw)
	}

	if !result.Pass {
		return fmt.Errorf("%w: %s", ErrValidationFailed, result.Err())
	}
	return nil
}

func printResult(w io.Writer, result validate.Result) {
	if result.Pass {
		passColor.Fprintf(w, "PASS")
		fmt.Fprintf(w, " %s expectations met\n", result.Kind)
		return
	}

	failColor.Fprintf(w, "FAIL")
	fmt.Fprintf(w, " %s expectations not met (%d failures)\n", result.Kind, len(result.Failures))
	if first, ok := result.FirstStructural(); ok {
		failColor.Fprintf(w, ">> %s\n", first)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "   - %s\n", f)
	}
}
