package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentcheck/internal/fakeagent"
	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/session"
)

const testApp = "agents.coordinator"

type recordedCall struct {
	mode, outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) ObserveCall(mode, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{mode, outcome})
}

func newAPIServer(t *testing.T) (*fakeagent.APIServer, *httptest.Server) {
	t.Helper()
	fake := fakeagent.NewAPIServer(testApp)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)
	return fake, srv
}

func TestStandaloneSend(t *testing.T) {
	srv := httptest.NewServer(fakeagent.NewStandalone(fakeagent.KindSentiment))
	defer srv.Close()

	rec := &fakeRecorder{}
	var a Adapter = NewStandalone(client.NewStandaloneClient(srv.URL), WithRecorder(rec))
	assert.Equal(t, normalize.SourceStandalone, a.Mode())

	resp, err := a.Send(context.Background(), NewRequest(session.New(), "I'm feeling extremely happy and excited today!"))
	require.NoError(t, err)
	assert.Equal(t, normalize.SourceStandalone, resp.SourceMode)
	assert.Equal(t, "positive", resp.Data["sentiment"])
	assert.NotEmpty(t, resp.Raw)
	assert.Equal(t, []recordedCall{{"standalone", OutcomeSuccess}}, rec.calls)

	t.Run("invalid session", func(t *testing.T) {
		_, err := a.Send(context.Background(), NewRequest(session.Context{}, "hi"))
		require.Error(t, err)
		assert.Equal(t, OutcomeInvalidReq, OutcomeOf(err))
	})
}

func TestStandaloneSendForwardsContext(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok","data":{}}`))
	}))
	defer srv.Close()

	sc := session.NewWithUser("alice")
	req := NewRequest(sc, "hello")
	req.Context = map[string]string{"channel": "test"}
	_, err := NewStandalone(client.NewStandaloneClient(srv.URL)).Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "hello", got["message"])
	assert.Equal(t, sc.SessionID, got["session_id"])
	assert.Equal(t, map[string]any{"user_id": "alice", "channel": "test"}, got["context"])
}

func TestAPIServerSend(t *testing.T) {
	fake, srv := newAPIServer(t)
	rec := &fakeRecorder{}
	a := NewAPIServer(client.NewAPIServerClient(srv.URL), testApp, WithRecorder(rec))
	assert.Equal(t, testApp, a.AppName())

	sc := session.New()
	ctx := context.Background()

	resp, err := a.Send(ctx, NewRequest(sc, "Please read this aloud"))
	require.NoError(t, err)
	assert.Equal(t, normalize.SourceAPIServer, resp.SourceMode)
	assert.Equal(t, "/tmp/speech/"+sc.SessionID+".mp3", resp.Data["audio_url"])
	assert.Contains(t, resp.Message, "File saved as")

	_, err = a.Send(ctx, NewRequest(sc, "hello again"))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.SessionCount())
	assert.Len(t, rec.calls, 2)

	t.Run("forget re-registers", func(t *testing.T) {
		a.Forget(sc)
		require.NoError(t, a.EnsureSession(ctx, sc))
		assert.Equal(t, 1, fake.SessionCount())
	})
}

func TestAPIServerSendStreaming(t *testing.T) {
	_, srv := newAPIServer(t)
	a := NewAPIServer(client.NewAPIServerClient(srv.URL), testApp,
		WithStreaming(true), WithPrecedence(normalize.PrecedenceModelText))

	resp, err := a.Send(context.Background(), NewRequest(session.New(), "Please read this aloud"))
	require.NoError(t, err)
	assert.Equal(t, "I converted the text to speech for you.", resp.Message)
	assert.NotEmpty(t, resp.Data["audio_url"])
}

func TestAPIServerSendWithoutRegistration(t *testing.T) {
	fake, srv := newAPIServer(t)
	ctx := context.Background()

	t.Run("strict server rejects", func(t *testing.T) {
		a := NewAPIServer(client.NewAPIServerClient(srv.URL), testApp, WithoutSessionRegistration())
		_, err := a.Send(ctx, NewRequest(session.New(), "hi"))
		var te *client.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusNotFound, te.StatusCode)
		assert.Contains(t, client.RawBody(err), "Session not found")
	})

	t.Run("lenient server answers", func(t *testing.T) {
		fake.Lenient = true
		defer func() { fake.Lenient = false }()
		a := NewAPIServer(client.NewAPIServerClient(srv.URL), testApp, WithoutSessionRegistration())
		resp, err := a.Send(ctx, NewRequest(session.New(), "hi"))
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Message)
		assert.Equal(t, 0, fake.SessionCount())
	})
}

func TestAPIServerConcurrentSends(t *testing.T) {
	fake, srv := newAPIServer(t)
	a := NewAPIServer(client.NewAPIServerClient(srv.URL), testApp)
	sc := session.New()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = a.Send(context.Background(), NewRequest(sc, "hello"))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, fake.SessionCount())
}

func TestRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok","data":{}}`))
	}))
	defer srv.Close()

	cfg := RetryConfig{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	a := NewStandalone(client.NewStandaloneClient(srv.URL))

	resp, err := Retry(context.Background(), a, NewRequest(session.New(), "hi"), cfg)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message)
	assert.Equal(t, int32(3), hits.Load())

	t.Run("permanent errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"unexpected":true}`))
		}))
		defer srv.Close()

		_, err := Retry(context.Background(), NewStandalone(client.NewStandaloneClient(srv.URL)), NewRequest(session.New(), "hi"), cfg)
		var se *client.SchemaError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("attempts run out", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		url := closed.URL
		closed.Close()

		cfg := cfg
		cfg.MaxAttempts = 2
		_, err := Retry(context.Background(), NewStandalone(client.NewStandaloneClient(url)), NewRequest(session.New(), "hi"), cfg)
		assert.Equal(t, client.KindConnectionRefused, client.KindOf(err))
	})
}

func TestFanOut(t *testing.T) {
	sentiment := httptest.NewServer(fakeagent.NewStandalone(fakeagent.KindSentiment))
	defer sentiment.Close()
	speaker := httptest.NewServer(fakeagent.NewStandalone(fakeagent.KindSpeaker))
	defer speaker.Close()
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	sc := session.New()
	calls := []Call{
		{Name: "sentiment", Adapter: NewStandalone(client.NewStandaloneClient(sentiment.URL)), Request: NewRequest(sc, "I love it")},
		{Name: "dead", Adapter: NewStandalone(client.NewStandaloneClient(deadURL)), Request: NewRequest(sc, "hi")},
		{Name: "speaker", Adapter: NewStandalone(client.NewStandaloneClient(speaker.URL)), Request: NewRequest(sc, "say hi")},
	}

	results := FanOut(context.Background(), calls, 2)
	require.Len(t, results, 3)
	assert.Equal(t, "sentiment", results[0].Call.Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, client.KindConnectionRefused, client.KindOf(results[1].Err))
	require.NoError(t, results[2].Err)
	assert.NotEmpty(t, results[2].Response.Data["audio_url"])
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, OutcomeOf(nil))
	assert.Equal(t, "timeout", OutcomeOf(&client.TransportError{Kind: client.KindTimeout}))
	assert.Equal(t, OutcomeSchemaErr, OutcomeOf(&client.SchemaError{}))
	assert.Equal(t, OutcomeAgentErr, OutcomeOf(&client.AgentError{}))
}
