package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/kagent-dev/agentcheck/internal/fakeagent"
)

type MockCfg struct {
	StandaloneAddr string
	Kind           string
	APIServerAddr  string
	Apps           []string
	Lenient        bool
}

// MockCmd serves fake agents until ctx is cancelled: a standalone agent of
// the given kind and an API server fronting the given apps. An empty address
// disables that server.
func MockCmd(ctx context.Context, cfg *MockCfg) error {
	log := logr.FromContextOrDiscard(ctx)

	var servers []*http.Server
	if cfg.StandaloneAddr != "" {
		switch cfg.Kind {
		case fakeagent.KindSentiment, fakeagent.KindSpeaker, fakeagent.KindSummarizer:
		default:
			return fmt.Errorf("unknown agent kind %q", cfg.Kind)
		}
		servers = append(servers, &http.Server{
			Addr:              cfg.StandaloneAddr,
			Handler:           fakeagent.NewStandalone(cfg.Kind),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	if cfg.APIServerAddr != "" {
		fake := fakeagent.NewAPIServer(cfg.Apps...)
		fake.Lenient = cfg.Lenient
		servers = append(servers, &http.Server{
			Addr:              cfg.APIServerAddr,
			Handler:           fake.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	if len(servers) == 0 {
		return errors.New("nothing to serve: both addresses are empty")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("Serving fake agent", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		for _, srv := range servers {
			err = errors.Join(err, srv.Shutdown(shutdownCtx))
		}
		log.Info("Fake agents stopped")
		return err
	})
	return g.Wait()
}
