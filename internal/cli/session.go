package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/session"
)

type SessionCfg struct {
	Config  *config.Config
	App     string
	User    string
	Session string
}

func (cfg *SessionCfg) apiClient() *client.APIServerClient {
	return client.NewAPIServerClient(cfg.Config.APIServerURL, clientOptions(cfg.Config)...)
}

func (cfg *SessionCfg) sessionContext() session.Context {
	sc := session.NewWithUser(firstNonEmpty(cfg.User, cfg.Config.UserID))
	if cfg.Session != "" {
		sc.SessionID = cfg.Session
	}
	return sc
}

// SessionCreateCmd registers a session with the API server. It succeeds when
// the session already exists.
func SessionCreateCmd(ctx context.Context, w io.Writer, cfg *SessionCfg) error {
	app := firstNonEmpty(cfg.App, cfg.Config.AppName)
	sc := cfg.sessionContext()
	if err := cfg.apiClient().EnsureSession(ctx, app, sc); err != nil {
		return err
	}
	return printOutput(w, cfg.Config.OutputFormat, sc,
		[]string{"App", "User", "Session"},
		[][]string{{app, sc.UserID, sc.SessionID}})
}

// SessionDeleteCmd deletes a session from the API server.
func SessionDeleteCmd(ctx context.Context, w io.Writer, cfg *SessionCfg) error {
	if cfg.Session == "" {
		return errors.New("session is required")
	}
	if cfg.User == "" && cfg.Config.UserID == "" {
		return errors.New("user is required")
	}
	app := firstNonEmpty(cfg.App, cfg.Config.AppName)
	user := firstNonEmpty(cfg.User, cfg.Config.UserID)
	if err := cfg.apiClient().DeleteSession(ctx, app, user, cfg.Session); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(w, "Session %s deleted\n", cfg.Session)
	return nil
}
