package fakeagent

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentcheck/pkg/client/api"
)

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data)))
	return rec
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text      string
		sentiment string
	}{
		{"I'm feeling extremely happy and excited today!", "positive"},
		{"This is terrible, I hate it", "negative"},
		{"The meeting is at noon", "neutral"},
	}
	for _, tt := range tests {
		t.Run(tt.sentiment, func(t *testing.T) {
			sentiment, confidence, _ := Classify(tt.text)
			assert.Equal(t, tt.sentiment, sentiment)
			assert.GreaterOrEqual(t, confidence, 0)
			assert.LessOrEqual(t, confidence, 99)
		})
	}
}

func TestStandaloneSentiment(t *testing.T) {
	h := NewStandalone(KindSentiment)
	rec := postJSON(t, h, "/run", api.A2ARunRequest{Message: "I love this", SessionID: "s1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.A2ARunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, api.StatusSuccess, resp.Status)
	assert.Equal(t, "positive", resp.Data["sentiment"])
	assert.Equal(t, "80%", resp.Data["confidence"])
	assert.Contains(t, resp.Message, "Overall Sentiment: positive")
}

func TestStandaloneEmptyMessage(t *testing.T) {
	rec := postJSON(t, NewStandalone(KindSpeaker), "/run", api.A2ARunRequest{Message: "  "})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.A2ARunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, api.StatusError, resp.Status)
	assert.Equal(t, "ValueError", resp.Data["error_type"])
}

func TestAPIServerSessions(t *testing.T) {
	s := NewAPIServer("agents.coordinator")
	h := s.Handler()
	path := "/apps/agents.coordinator/users/u1/sessions/s1"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, h, path, map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.SessionCount())

	rec = postJSON(t, h, path, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")

	rec = postJSON(t, h, "/apps/unknown/users/u1/sessions/s1", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.SessionCount())
}

func TestAPIServerRun(t *testing.T) {
	s := NewAPIServer("agents.coordinator")
	h := s.Handler()
	req := api.NewRunAgentRequest("agents.coordinator", "u1", "s1", "Please read this aloud")

	t.Run("unknown session is rejected", func(t *testing.T) {
		rec := postJSON(t, h, "/run", req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("speech flow", func(t *testing.T) {
		postJSON(t, h, "/apps/agents.coordinator/users/u1/sessions/s1", map[string]any{})
		rec := postJSON(t, h, "/run", req)
		require.Equal(t, http.StatusOK, rec.Code)

		var events []api.Event
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
		require.Len(t, events, 3)
		responses := events[1].FunctionResponses()
		require.Len(t, responses, 1)
		assert.Equal(t, "text_to_speech", responses[0].Name)
		assert.Equal(t, api.RoleModel, events[2].Role())
	})

	t.Run("streamed", func(t *testing.T) {
		rec := postJSON(t, h, "/run_sse", req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, 3, strings.Count(rec.Body.String(), "data: "))
	})

	t.Run("lenient", func(t *testing.T) {
		s.Lenient = true
		defer func() { s.Lenient = false }()
		rec := postJSON(t, h, "/run", api.NewRunAgentRequest("agents.coordinator", "u2", "nope", "hello"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestScriptSentiment(t *testing.T) {
	events := Script(api.NewRunAgentRequest("a", "u", "s", "Analyze the sentiment: I hate rain"))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "sentiment_analyzer_agent", last.Author)
	assert.Contains(t, last.Text(), "Overall Sentiment: negative")
}
