package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/internal/metrics"
	"github.com/kagent-dev/agentcheck/pkg/adapter"
	"github.com/kagent-dev/agentcheck/pkg/client"
)

type InvokeCfg struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Target  Target
	Message string
	File    string
	Session string
	Retries uint
	Spinner bool
}

// InvokeCmd sends one message and prints the normalized response. With
// verbose output the raw wire payload follows.
func InvokeCmd(ctx context.Context, w io.Writer, cfg *InvokeCfg) error {
	message, err := readMessage(cfg.Message, cfg.File)
	if err != nil {
		return err
	}
	a, err := newAdapter(cfg.Config, cfg.Metrics, cfg.Target)
	if err != nil {
		return err
	}

	sc := newSession(cfg.Config, cfg.Session)
	logr.FromContextOrDiscard(ctx).V(1).Info("Invoking agent", "mode", a.Mode(), "sessionID", sc.SessionID, "userID", sc.UserID)

	resp, err := send(ctx, a, adapter.NewRequest(sc, message), cfg.Retries, cfg.Spinner)
	if err != nil {
		failColor.Fprintf(w, "Error invoking agent (%s): %v\n", adapter.OutcomeOf(err), err)
		if raw := client.RawBody(err); raw != "" {
			printRaw(w, []byte(raw))
		}
		return fmt.Errorf("invoke failed: %w", err)
	}
	return printResponse(w, cfg.Config.OutputFormat, resp, cfg.Config.Verbose)
}
