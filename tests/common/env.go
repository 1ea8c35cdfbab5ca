package common

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/bobmcallan/vire-insights/internal/app"
	"github.com/bobmcallan/vire-insights/internal/common"
	"github.com/bobmcallan/vire-insights/internal/server"
)

// Env runs the full insights server in-process against fake upstream services.
// The positions API and the completion service are real HTTP endpoints so the
// production clients are exercised end to end.
type Env struct {
	t         *testing.T
	App       *app.App
	Server    *httptest.Server
	Positions *FakePositions
	Narrative *FakeNarrative

	upstreams []*httptest.Server
}

// EnvOptions tweaks the configuration before the app is built.
type EnvOptions struct {
	Configure func(*common.Config)
}

// NewEnv creates an environment with the memory backend.
func NewEnv(t *testing.T) *Env {
	return NewEnvWithOptions(t, EnvOptions{})
}

// NewEnvWithOptions creates an environment with custom configuration.
func NewEnvWithOptions(t *testing.T, opts EnvOptions) *Env {
	t.Helper()

	e := &Env{
		t:         t,
		Positions: &FakePositions{rows: map[string][]map[string]any{}},
		Narrative: &FakeNarrative{},
	}

	positionsSrv := httptest.NewServer(e.Positions)
	narrativeSrv := httptest.NewServer(e.Narrative)
	e.upstreams = append(e.upstreams, positionsSrv, narrativeSrv)

	config := common.NewDefaultConfig()
	config.Storage.Backend = common.BackendMemory
	config.Clients.Positions.BaseURL = positionsSrv.URL
	config.Clients.Positions.RateLimit = 100
	config.Clients.Narrative.Provider = common.ProviderService
	config.Clients.Narrative.BaseURL = narrativeSrv.URL
	config.Clients.Narrative.RateLimit = 100
	config.Insights.DefaultModel = "e2e-model"
	if opts.Configure != nil {
		opts.Configure(config)
	}

	a, err := app.NewAppWithConfig(context.Background(), config, common.NewSilentLogger())
	if err != nil {
		e.closeUpstreams()
		t.Fatalf("failed to build app: %v", err)
	}
	e.App = a
	e.Server = httptest.NewServer(server.NewServer(a).Handler())

	return e
}

// Cleanup stops the server and upstreams and releases the app.
func (e *Env) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	e.closeUpstreams()
	if e.App != nil {
		e.App.Close()
	}
}

func (e *Env) closeUpstreams() {
	for _, s := range e.upstreams {
		s.Close()
	}
	e.upstreams = nil
}

// HTTPDo sends a request to the insights server with optional identity headers.
func (e *Env) HTTPDo(method, path, userID, sessionID string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-Insights-User-ID", userID)
	}
	if sessionID != "" {
		req.Header.Set("X-Insights-Session-ID", sessionID)
	}
	return e.Server.Client().Do(req)
}

// HTTPGet sends an anonymous GET request to the insights server.
func (e *Env) HTTPGet(path string) (*http.Response, error) {
	return e.HTTPDo(http.MethodGet, path, "", "", nil)
}

// MCPRequest posts one JSON-RPC request to the /mcp endpoint and returns the raw response.
// Event-stream replies are unwrapped to the first data line.
func (e *Env) MCPRequest(method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.Server.URL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := e.Server.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mcp status %d: %s", resp.StatusCode, string(data))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data:") {
				return json.RawMessage(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), nil
			}
		}
		return nil, fmt.Errorf("no data in event stream: %v", scanner.Err())
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// FakePositions serves GET /v1/users/{id}/positions from an in-memory table.
type FakePositions struct {
	mu     sync.Mutex
	rows   map[string][]map[string]any
	status int
	calls  int
}

// Set replaces the rows returned for userID.
func (f *FakePositions) Set(userID string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[userID] = rows
}

// Fail makes every request answer with status until reset with 0.
func (f *FakePositions) Fail(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

// Calls returns the number of requests served.
func (f *FakePositions) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakePositions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.status != 0 {
		http.Error(w, "upstream unavailable", f.status)
		return
	}

	// /v1/users/{id}/positions, with the id path-escaped by the client
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/v1/users/")
	id, ok := strings.CutSuffix(rest, "/positions")
	if r.Method != http.MethodGet || !ok {
		http.NotFound(w, r)
		return
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}

	rows := f.rows[id]
	if rows == nil {
		rows = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": rows})
}

// NarrativeCall records one request received by FakeNarrative.
type NarrativeCall struct {
	TraceHeader string
	Body        map[string]any
}

// FakeNarrative serves POST /v1/complete with a scripted reply.
type FakeNarrative struct {
	mu       sync.Mutex
	reply    string
	status   int
	errorDoc map[string]any
	calls    []NarrativeCall
}

// Reply sets the model text returned on success.
func (f *FakeNarrative) Reply(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = text
	f.status = 0
	f.errorDoc = nil
}

// Fail answers with status and the structured error body {code, message, raw_text}.
func (f *FakeNarrative) Fail(status int, code, message, rawText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.errorDoc = map[string]any{"code": code, "message": message, "raw_text": rawText}
}

// Calls returns every request served so far.
func (f *FakeNarrative) Calls() []NarrativeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NarrativeCall(nil), f.calls...)
}

func (f *FakeNarrative) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/v1/complete" {
		http.NotFound(w, r)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, NarrativeCall{TraceHeader: r.Header.Get("X-Trace-ID"), Body: body})

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		json.NewEncoder(w).Encode(f.errorDoc)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"response":      f.reply,
		"tokens_used":   321,
		"model_version": "fake-narrative-1",
	})
}
