package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/internal/metrics"
	"github.com/kagent-dev/agentcheck/internal/version"
	"github.com/kagent-dev/agentcheck/pkg/adapter"
	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/session"
)

// ErrValidationFailed is returned when a response did not meet expectations.
var ErrValidationFailed = errors.New("validation failed")

// Target selects the agent a command talks to. Empty fields fall back to the
// config.
type Target struct {
	Mode      string
	URL       string
	App       string
	Stream    bool
	NoSession bool
}

func clientOptions(cfg *config.Config) []client.ClientOption {
	return []client.ClientOption{
		client.WithTimeout(cfg.Timeout),
		client.WithUserAgent(version.Get().UserAgent()),
	}
}

func newAdapter(cfg *config.Config, m *metrics.Metrics, target Target) (adapter.Adapter, error) {
	precedence, err := normalize.ParsePrecedence(cfg.Precedence)
	if err != nil {
		return nil, err
	}
	opts := []adapter.Option{
		adapter.WithPrecedence(precedence),
		adapter.WithStreaming(target.Stream),
	}
	if m != nil {
		opts = append(opts, adapter.WithRecorder(m))
	}
	if target.NoSession {
		opts = append(opts, adapter.WithoutSessionRegistration())
	}

	switch target.Mode {
	case config.ModeStandalone, "":
		url := firstNonEmpty(target.URL, cfg.StandaloneURL)
		return adapter.NewStandalone(client.NewStandaloneClient(url, clientOptions(cfg)...), opts...), nil
	case config.ModeAPIServer:
		url := firstNonEmpty(target.URL, cfg.APIServerURL)
		app := firstNonEmpty(target.App, cfg.AppName)
		return adapter.NewAPIServer(client.NewAPIServerClient(url, clientOptions(cfg)...), app, opts...), nil
	default:
		return nil, fmt.Errorf("unknown mode %q (expected %s or %s)", target.Mode, config.ModeStandalone, config.ModeAPIServer)
	}
}

func newSession(cfg *config.Config, sessionID string) session.Context {
	sc := session.NewWithUser(cfg.UserID)
	if sessionID != "" {
		sc.SessionID = sessionID
	}
	return sc
}

// readMessage returns message, or the contents of file ("-" for stdin).
func readMessage(message, file string) (string, error) {
	if message != "" {
		return message, nil
	}
	switch file {
	case "":
		return "", errors.New("message or file is required")
	case "-":
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("error reading from stdin: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	default:
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("error reading from file: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}
}

// send performs one call behind a spinner, retrying transient failures when
// retries > 0.
func send(ctx context.Context, a adapter.Adapter, req *adapter.Request, retries uint, showSpinner bool) (*normalize.AgentResponse, error) {
	if showSpinner {
		s := spinner.New(spinner.CharSets[35], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Waiting for agent..."
		s.Start()
		defer s.Stop()
	}
	if retries == 0 {
		return a.Send(ctx, req)
	}
	cfg := adapter.DefaultRetryConfig()
	cfg.MaxAttempts = retries + 1
	return adapter.Retry(ctx, a, req, cfg)
}

// rawOf returns the wire payload of a call, whether it succeeded or not.
func rawOf(resp *normalize.AgentResponse, err error) []byte {
	if resp != nil {
		return resp.Raw
	}
	return []byte(client.RawBody(err))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
