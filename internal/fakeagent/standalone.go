// Package fakeagent serves in-process stand-ins for agent services: standalone
// A2A agents and an API server fronting several apps. They implement just
// enough of each wire protocol to exercise the clients end to end.
package fakeagent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kagent-dev/agentcheck/pkg/client/api"
)

// Kinds of standalone agents the fake can impersonate.
const (
	KindSentiment  = "sentiment"
	KindSpeaker    = "speaker"
	KindSummarizer = "summarizer"
)

var (
	positiveWords = []string{"happy", "great", "love", "excellent", "amazing", "good", "wonderful", "excited"}
	negativeWords = []string{"sad", "terrible", "hate", "awful", "bad", "angry", "horrible", "disappointed"}
)

// NewStandalone returns the handler of a standalone agent of the given kind.
func NewStandalone(kind string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/run", func(w http.ResponseWriter, req *http.Request) {
		var body api.A2ARunRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, api.APIError{Detail: err.Error()})
			return
		}
		if strings.TrimSpace(body.Message) == "" {
			writeJSON(w, http.StatusOK, api.A2ARunResponse{
				Message: "Error processing your request: empty message",
				Status:  api.StatusError,
				Data:    map[string]any{"error_type": "ValueError"},
			})
			return
		}
		writeJSON(w, http.StatusOK, standaloneAnswer(kind, body))
	}).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/agent.json", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":        agentName(kind),
			"description": "Fake " + kind + " agent",
			"url":         "http://localhost/",
			"version":     "0.1.0",
		})
	}).Methods(http.MethodGet)
	return r
}

func agentName(kind string) string {
	switch kind {
	case KindSentiment:
		return "Sentiment Analyzer"
	case KindSpeaker:
		return "Speaker"
	default:
		return "Summarizer"
	}
}

func standaloneAnswer(kind string, body api.A2ARunRequest) api.A2ARunResponse {
	switch kind {
	case KindSentiment:
		sentiment, confidence, markers := Classify(body.Message)
		return api.A2ARunResponse{
			Message: SentimentReport(sentiment, confidence, markers),
			Status:  api.StatusSuccess,
			Data: map[string]any{
				"sentiment":   sentiment,
				"confidence":  fmt.Sprintf("%d%%", confidence),
				"key_markers": markers,
				"analysis":    "The text reads as " + sentiment + ".",
			},
		}
	case KindSpeaker:
		return api.A2ARunResponse{
			Message: "Converted text to speech.",
			Status:  api.StatusSuccess,
			Data:    map[string]any{"audio_url": "file:///tmp/speech/" + body.SessionID + ".mp3"},
		}
	default:
		return api.A2ARunResponse{
			Message: Summarize(body.Message),
			Status:  api.StatusSuccess,
			Data:    map[string]any{},
		}
	}
}

// Classify is a keyword classifier good enough for smoke tests.
func Classify(text string) (sentiment string, confidence int, markers []string) {
	lower := strings.ToLower(text)
	var pos, neg []string
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos = append(pos, w)
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg = append(neg, w)
		}
	}
	switch {
	case len(pos) > len(neg):
		return "positive", min(99, 70+10*(len(pos)-len(neg))), pos
	case len(neg) > len(pos):
		return "negative", min(99, 70+10*(len(neg)-len(pos))), neg
	default:
		return "neutral", 60, append(pos, neg...)
	}
}

// SentimentReport renders the structured report sentiment agents answer with.
func SentimentReport(sentiment string, confidence int, markers []string) string {
	return fmt.Sprintf("- Overall Sentiment: %s\n- Confidence: %d%%\n- Key Markers: %s\n- Analysis: The text reads as %s.",
		sentiment, confidence, strings.Join(markers, ", "), sentiment)
}

// Summarize returns the first sentence of text.
func Summarize(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return "Summary: " + text[:i+1]
	}
	return "Summary: " + text
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
