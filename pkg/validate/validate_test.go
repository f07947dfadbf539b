package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentcheck/internal/fakeagent"
	"github.com/kagent-dev/agentcheck/pkg/adapter"
	"github.com/kagent-dev/agentcheck/pkg/client"
	"github.com/kagent-dev/agentcheck/pkg/normalize"
	"github.com/kagent-dev/agentcheck/pkg/session"
)

func mustBuiltin(t *testing.T, kind string) Expectations {
	t.Helper()
	exp, err := Builtin(kind)
	require.NoError(t, err)
	return exp
}

func sentimentResponse(data map[string]any) *normalize.AgentResponse {
	return &normalize.AgentResponse{Message: "report", Data: data, SourceMode: normalize.SourceStandalone}
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in      any
		want    float64
		wantErr bool
	}{
		{in: 0.95, want: 0.95},
		{in: "0.95", want: 0.95},
		{in: "95%", want: 0.95},
		{in: " 80 % ", want: 0.8},
		{in: 1, want: 1},
		{in: "95", want: 95},
		{in: "high", wantErr: true},
		{in: "%", wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseConfidence(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
	}
}

func TestSentimentConfidence(t *testing.T) {
	exp := mustBuiltin(t, KindSentiment)
	tests := []struct {
		confidence any
		pass       bool
		kind       FailureKind
	}{
		{confidence: "0.95", pass: true},
		{confidence: "95%", pass: true},
		{confidence: 0.5, pass: true},
		{confidence: "high", pass: false, kind: FailureTypeMismatch},
		{confidence: "95", pass: false, kind: FailureOutOfRange},
		{confidence: "-5%", pass: false, kind: FailureOutOfRange},
	}
	for _, tt := range tests {
		res := Validate(sentimentResponse(map[string]any{"sentiment": "positive", "confidence": tt.confidence}), exp)
		assert.Equal(t, tt.pass, res.Pass, "%v: %v", tt.confidence, res.Messages())
		if !tt.pass {
			require.Len(t, res.Failures, 1)
			assert.Equal(t, tt.kind, res.Failures[0].Kind)
			assert.Equal(t, "data.confidence", res.Failures[0].Field)
		}
	}
}

func TestSentimentNestedRoot(t *testing.T) {
	exp := mustBuiltin(t, KindSentiment)
	res := Validate(sentimentResponse(map[string]any{
		"sentiment_analysis": map[string]any{
			"sentiment":   "Negative",
			"confidence":  "70%",
			"key_markers": []any{"sad"},
		},
	}), exp)
	assert.True(t, res.Pass, res.Messages())
	assert.NoError(t, res.Err())
}

func TestValidateCollectsEverything(t *testing.T) {
	exp := mustBuiltin(t, KindSentiment)
	res := Validate(&normalize.AgentResponse{Data: map[string]any{
		"sentiment":   "ecstatic",
		"key_markers": "not a list",
	}}, exp)

	require.False(t, res.Pass)
	assert.Equal(t, []string{
		"message: missing: message is missing or empty",
		"data.confidence: missing: required field is missing",
		"data.key_markers: type_mismatch: expected list, got string",
		`data.sentiment: not_allowed: "ecstatic" is not one of positive, negative, neutral`,
	}, res.Messages())

	first, ok := res.FirstStructural()
	require.True(t, ok)
	assert.Equal(t, "message", first.Field)

	err := res.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 errors occurred")
}

func TestMissingFieldReportedOnce(t *testing.T) {
	res := Validate(sentimentResponse(map[string]any{}), mustBuiltin(t, KindSentiment))
	assert.Equal(t, []string{
		"data.sentiment: missing: required field is missing",
		"data.confidence: missing: required field is missing",
	}, res.Messages())

	nested := Expectations{Kind: "report", Fields: []FieldRule{
		{Path: "report.sentiment", Required: true, Type: TypeString},
		{Path: "report", Required: true, Type: TypeObject},
		{Path: "report.details.score", Required: true, Type: TypeNumber},
	}}

	t.Run("absent parent", func(t *testing.T) {
		res := Validate(sentimentResponse(map[string]any{}), nested)
		assert.Equal(t, []string{"data.report: missing: required field is missing"}, res.Messages())
	})

	t.Run("parent of the wrong type", func(t *testing.T) {
		res := Validate(sentimentResponse(map[string]any{"report": "positive"}), nested)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, FailureTypeMismatch, res.Failures[0].Kind)
		assert.Equal(t, "data.report", res.Failures[0].Field)
	})

	t.Run("optional parent absent", func(t *testing.T) {
		exp := Expectations{Fields: []FieldRule{
			{Path: "report", Type: TypeObject},
			{Path: "report.sentiment", Required: true},
		}}
		assert.True(t, Validate(sentimentResponse(map[string]any{}), exp).Pass)
	})

	t.Run("present parent still checks children", func(t *testing.T) {
		res := Validate(sentimentResponse(map[string]any{"report": map[string]any{"sentiment": "positive"}}), nested)
		assert.Equal(t, []string{"data.report.details.score: missing: required field is missing"}, res.Messages())
	})
}

func TestSpeaker(t *testing.T) {
	exp := mustBuiltin(t, KindSpeaker)
	for _, url := range []string{"file:///tmp/a.mp3", "https://cdn/a.mp3", "/tmp/a.mp3"} {
		res := Validate(&normalize.AgentResponse{Message: "ok", Data: map[string]any{"audio_url": url}}, exp)
		assert.True(t, res.Pass, url)
	}

	res := Validate(&normalize.AgentResponse{Message: "ok", Data: map[string]any{"audio_url": "ftp://x"}}, exp)
	require.False(t, res.Pass)
	assert.Equal(t, FailureNotAllowed, res.Failures[0].Kind)

	res = Validate(&normalize.AgentResponse{Message: "ok", Data: map[string]any{"audio_url": ""}}, exp)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, FailureTypeMismatch, res.Failures[0].Kind)

	upper := Expectations{Fields: []FieldRule{{Path: "audio_url", Required: true, Prefixes: []string{"HTTPS://"}}}}
	assert.True(t, Validate(&normalize.AgentResponse{Message: "ok", Data: map[string]any{"audio_url": "https://cdn/a.mp3"}}, upper).Pass)
	assert.False(t, Validate(&normalize.AgentResponse{Message: "ok", Data: map[string]any{"audio_url": "/tmp/a.mp3"}}, upper).Pass)
}

func TestGeneric(t *testing.T) {
	exp := mustBuiltin(t, "Summarizer")
	assert.True(t, Validate(&normalize.AgentResponse{Message: "Summary", Data: map[string]any{}}, exp).Pass)
	assert.False(t, Validate(&normalize.AgentResponse{Message: "  ", Data: map[string]any{}}, exp).Pass)
	assert.False(t, Validate(nil, exp).Pass)

	_, err := Builtin("weather")
	assert.Error(t, err)
	assert.Equal(t, []string{"generic", "sentiment", "speaker", "summarizer"}, Kinds())
}

func TestValidateCall(t *testing.T) {
	exp := mustBuiltin(t, KindSentiment)

	t.Run("schema error", func(t *testing.T) {
		res := ValidateCall(nil, &client.SchemaError{Missing: []string{"data"}}, exp)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, Failure{Kind: FailureMissing, Field: "data", Detail: "required top-level field is missing"}, res.Failures[0])
	})

	t.Run("transport error", func(t *testing.T) {
		res := ValidateCall(nil, &client.TransportError{Kind: client.KindConnectionRefused, Method: "POST", URL: "http://x/run"}, exp)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, FailureTransport, res.Failures[0].Kind)
		assert.Contains(t, res.Failures[0].Detail, "connection_refused")
	})

	t.Run("agent error", func(t *testing.T) {
		res := ValidateCall(nil, &client.AgentError{Message: "boom"}, exp)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, FailureAgent, res.Failures[0].Kind)
	})
}

func TestHappyPathEndToEnd(t *testing.T) {
	srv := httptest.NewServer(fakeagent.NewStandalone(fakeagent.KindSentiment))
	defer srv.Close()

	a := adapter.NewStandalone(client.NewStandaloneClient(srv.URL))
	resp, err := a.Send(context.Background(), adapter.NewRequest(session.New(), "I'm feeling extremely happy and excited today!"))
	res := ValidateCall(resp, err, mustBuiltin(t, KindSentiment))
	assert.True(t, res.Pass, res.Messages())
	assert.Equal(t, "positive", resp.Data["sentiment"])
}

func TestUnreachableEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := adapter.NewStandalone(client.NewStandaloneClient(url))
	resp, err := a.Send(context.Background(), adapter.NewRequest(session.New(), "hi"))
	res := ValidateCall(resp, err, mustBuiltin(t, KindSentiment))
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Detail, string(client.KindConnectionRefused))
}

func TestLoadExpectations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kind: weather
requireMessage: true
fields:
  - path: forecast.temperature
    required: true
    type: number
    min: -60
    max: 60
  - path: forecast.sky
    type: string
    enum: [sunny, cloudy]
`), 0o600))

	exp, err := LoadExpectations(path)
	require.NoError(t, err)
	assert.Equal(t, "weather", exp.Kind)
	require.Len(t, exp.Fields, 2)

	res := Validate(&normalize.AgentResponse{Message: "ok", Data: map[string]any{
		"forecast": map[string]any{"temperature": 75.0, "sky": "sunny"},
	}}, exp)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, FailureOutOfRange, res.Failures[0].Kind)

	t.Run("rejects unknown keys", func(t *testing.T) {
		_, err := ParseExpectations([]byte("kind: x\nfieldz: []\n"))
		assert.Error(t, err)
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		_, err := ParseExpectations([]byte("kind: x\nfields:\n  - path: a\n    type: date\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadExpectations(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
