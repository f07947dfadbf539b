package fakeagent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"google.golang.org/genai"

	"github.com/kagent-dev/agentcheck/pkg/client/api"
)

// APIServer is a fake API server fronting a set of apps. Sessions must be
// registered before /run references them unless Lenient is set.
type APIServer struct {
	// Lenient accepts runs against unregistered sessions.
	Lenient bool

	apps     []string
	mu       sync.Mutex
	sessions map[string]*api.Session
}

// NewAPIServer creates a fake server fronting the given apps.
func NewAPIServer(apps ...string) *APIServer {
	return &APIServer{
		apps:     apps,
		sessions: make(map[string]*api.Session),
	}
}

// Handler returns the server's routes.
func (s *APIServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/list-apps", s.handleListApps).Methods(http.MethodGet)
	r.HandleFunc("/apps/{app}/users/{user}/sessions/{session}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/apps/{app}/users/{user}/sessions/{session}", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/apps/{app}/users/{user}/sessions/{session}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/run", s.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/run_sse", s.handleRunSSE).Methods(http.MethodPost)
	return r
}

// SessionCount returns the number of registered sessions.
func (s *APIServer) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func sessionKey(app, user, id string) string {
	return app + "/" + user + "/" + id
}

func (s *APIServer) knownApp(app string) bool {
	for _, a := range s.apps {
		if a == app {
			return true
		}
	}
	return false
}

func (s *APIServer) handleListApps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.apps)
}

func (s *APIServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	sess, ok := s.sessions[sessionKey(vars["app"], vars["user"], vars["session"])]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, api.APIError{Detail: "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *APIServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.knownApp(vars["app"]) {
		writeJSON(w, http.StatusNotFound, api.APIError{Detail: "App not found: " + vars["app"]})
		return
	}
	state := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, api.APIError{Detail: err.Error()})
			return
		}
	}

	key := sessionKey(vars["app"], vars["user"], vars["session"])
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[key]; exists {
		writeJSON(w, http.StatusBadRequest, api.APIError{Detail: "Session already exists: " + vars["session"]})
		return
	}
	sess := &api.Session{
		ID:             vars["session"],
		AppName:        vars["app"],
		UserID:         vars["user"],
		State:          state,
		LastUpdateTime: float64(time.Now().Unix()),
	}
	s.sessions[key] = sess
	writeJSON(w, http.StatusOK, sess)
}

func (s *APIServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	delete(s.sessions, sessionKey(vars["app"], vars["user"], vars["session"]))
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *APIServer) decodeRun(w http.ResponseWriter, r *http.Request) (*api.RunAgentRequest, bool) {
	var req api.RunAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, api.APIError{Detail: err.Error()})
		return nil, false
	}
	if !s.knownApp(req.AppName) {
		writeJSON(w, http.StatusNotFound, api.APIError{Detail: "App not found: " + req.AppName})
		return nil, false
	}
	s.mu.Lock()
	_, ok := s.sessions[sessionKey(req.AppName, req.UserID, req.SessionID)]
	s.mu.Unlock()
	if !ok && !s.Lenient {
		writeJSON(w, http.StatusNotFound, api.APIError{Detail: "Session not found"})
		return nil, false
	}
	return &req, true
}

func (s *APIServer) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Script(req))
}

func (s *APIServer) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, event := range Script(req) {
		data, err := json.Marshal(event)
		if err != nil {
			fmt.Fprintf(w, "data: {\"error\": %q}\n\n", err.Error())
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func userText(req *api.RunAgentRequest) string {
	if req.NewMessage == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range req.NewMessage.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Script returns the event sequence a coordinator-style app produces for the request:
// speech requests go through the text_to_speech tool, sentiment requests are
// delegated to the sentiment analyzer, anything else is answered directly.
func Script(req *api.RunAgentRequest) []api.Event {
	text := userText(req)
	lower := strings.ToLower(text)
	invocation := "e-" + uuid.NewString()

	switch {
	case strings.Contains(lower, "speak") || strings.Contains(lower, "read"):
		path := "/tmp/speech/" + req.SessionID + ".mp3"
		return []api.Event{
			{
				InvocationID: invocation,
				Author:       "speaker_agent",
				Content: &genai.Content{Role: api.RoleModel, Parts: []*genai.Part{
					genai.NewPartFromFunctionCall("text_to_speech", map[string]any{"text": text}),
				}},
			},
			{
				InvocationID: invocation,
				Author:       "speaker_agent",
				Content: &genai.Content{Role: api.RoleUser, Parts: []*genai.Part{
					genai.NewPartFromFunctionResponse("text_to_speech", map[string]any{
						"result": map[string]any{
							"content": []any{map[string]any{
								"type": "text",
								"text": "Success. File saved as: " + path + ". Voice used: Rachel",
							}},
						},
					}),
				}},
			},
			{
				InvocationID: invocation,
				Author:       "speaker_agent",
				Content:      genai.NewContentFromText("I converted the text to speech for you.", genai.RoleModel),
				TurnComplete: true,
			},
		}
	case strings.Contains(lower, "sentiment") || strings.Contains(lower, "analy"):
		sentiment, confidence, markers := Classify(text)
		return []api.Event{
			{
				InvocationID: invocation,
				Author:       "coordinator_agent",
				Content: &genai.Content{Role: api.RoleModel, Parts: []*genai.Part{
					genai.NewPartFromFunctionCall("transfer_to_agent", map[string]any{"agent_name": "sentiment_analyzer_agent"}),
				}},
			},
			{
				InvocationID: invocation,
				Author:       "coordinator_agent",
				Content: &genai.Content{Role: api.RoleUser, Parts: []*genai.Part{
					genai.NewPartFromFunctionResponse("transfer_to_agent", map[string]any{"result": nil}),
				}},
			},
			{
				InvocationID: invocation,
				Author:       "sentiment_analyzer_agent",
				Content:      genai.NewContentFromText(SentimentReport(sentiment, confidence, markers), genai.RoleModel),
				TurnComplete: true,
			},
		}
	default:
		return []api.Event{
			{
				InvocationID: invocation,
				Author:       "coordinator_agent",
				Content:      genai.NewContentFromText(Summarize(text), genai.RoleModel),
				TurnComplete: true,
			},
		}
	}
}
