package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/pkg/client"
)

type PingCfg struct {
	Config *config.Config
}

type pingRow struct {
	Endpoint string `json:"endpoint"`
	Check    string `json:"check"`
	OK       bool   `json:"ok"`
	Detail   string `json:"detail"`
}

// PingCmd probes both endpoints: the standalone agent's health and card, and
// the API server's app list.
func PingCmd(ctx context.Context, w io.Writer, cfg *PingCfg) error {
	standalone := client.NewStandaloneClient(cfg.Config.StandaloneURL, clientOptions(cfg.Config)...)
	apiServer := client.NewAPIServerClient(cfg.Config.APIServerURL, clientOptions(cfg.Config)...)

	checks := []struct {
		endpoint, name string
		run            func(context.Context) (string, error)
	}{
		{standalone.BaseURL(), "health", func(ctx context.Context) (string, error) {
			return "reachable", standalone.Health(ctx)
		}},
		{standalone.BaseURL(), "agent card", func(ctx context.Context) (string, error) {
			card, err := standalone.AgentCard(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s %s", card.Name, card.Version), nil
		}},
		{apiServer.BaseURL(), "apps", func(ctx context.Context) (string, error) {
			apps, err := apiServer.ListApps(ctx)
			if err != nil {
				return "", err
			}
			return strings.Join(apps, ", "), nil
		}},
	}

	results := make([]pingRow, len(checks))
	errs := make([]error, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			detail, err := c.run(gctx)
			results[i] = pingRow{Endpoint: c.endpoint, Check: c.name, OK: err == nil, Detail: detail}
			if err != nil {
				results[i].Detail = err.Error()
				errs[i] = fmt.Errorf("%s %s: %w", c.endpoint, c.name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	rows := make([][]string, len(results))
	for i, r := range results {
		status := passColor.Sprint("ok")
		if !r.OK {
			status = failColor.Sprint("failed")
			merr = multierror.Append(merr, errs[i])
		}
		rows[i] = []string{r.Endpoint, r.Check, status, r.Detail}
	}
	if err := printOutput(w, cfg.Config.OutputFormat, results, []string{"Endpoint", "Check", "Status", "Detail"}, rows); err != nil {
		return err
	}
	return merr.ErrorOrNil()
}
