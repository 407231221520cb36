package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/json"
	"github.com/oarkflow/log"

	"github.com/oarkflow/spl"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}}
	}
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { s.cache.Close() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, payload any, out any) int {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s response %q: %v", path, data, err)
		}
	}
	return resp.StatusCode
}

func TestHealthAndBuiltins(t *testing.T) {
	s := newTestServer(t, Config{Version: "9.9.9"})
	var health map[string]any
	if code := doJSON(t, s, http.MethodGet, "/api/health", nil, &health); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if health["status"] != "healthy" || health["version"] != "9.9.9" {
		t.Fatalf("unexpected health payload %v", health)
	}
	var builtins struct {
		Builtins []string `json:"builtins"`
	}
	doJSON(t, s, http.MethodGet, "/api/builtins", nil, &builtins)
	if !strings.Contains(strings.Join(builtins.Builtins, ","), "print") {
		t.Fatalf("expected print among builtins, got %v", builtins.Builtins)
	}
}

func TestRunScript(t *testing.T) {
	s := newTestServer(t, Config{})
	var run RunSummary
	code := doJSON(t, s, http.MethodPost, "/api/run", SourceRequest{
		Source:  "var total: int = sum(range(n))\nprint(\"total\", total)",
		Globals: map[string]any{"n": 5},
	}, &run)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", code, run.Error)
	}
	if run.Status != "completed" || run.Output != "total 10\n" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.ID == "" {
		t.Fatalf("expected a run id")
	}
	if total, ok := run.Globals["total"].(float64); !ok || total != 10 {
		t.Fatalf("expected total global of 10, got %v", run.Globals["total"])
	}

	var fetched RunSummary
	if code := doJSON(t, s, http.MethodGet, "/api/runs/"+run.ID, nil, &fetched); code != http.StatusOK {
		t.Fatalf("expected stored run, got %d", code)
	}
	if fetched.Output != run.Output {
		t.Fatalf("stored run differs: %+v", fetched)
	}
	var runs []RunSummary
	doJSON(t, s, http.MethodGet, "/api/runs", nil, &runs)
	if len(runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs))
	}
	if code := doJSON(t, s, http.MethodGet, "/api/runs/nope", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", code)
	}
}

func TestRunScriptErrors(t *testing.T) {
	s := newTestServer(t, Config{})
	cases := []struct {
		source string
		code   string
		line   int
	}{
		{"print(1 / 0)", "RUNTIME_ERROR", 1},
		{"print(1)\nvar x: int = ", "SYNTAX_ERROR", 2},
		{"print(missing)", "NAME_ERROR", 1},
		{"if 1 {\n}", "TYPE_ERROR", 0},
	}
	for _, tc := range cases {
		var run RunSummary
		status := doJSON(t, s, http.MethodPost, "/api/run", SourceRequest{Source: tc.source}, &run)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("%q: expected 422, got %d", tc.source, status)
		}
		if run.Error == nil || run.Error.Code != tc.code {
			t.Fatalf("%q: expected %s, got %+v", tc.source, tc.code, run.Error)
		}
		if tc.line > 0 && run.Error.Line != tc.line {
			t.Fatalf("%q: expected line %d, got %d", tc.source, tc.line, run.Error.Line)
		}
		if run.Status != "failed" {
			t.Fatalf("%q: expected failed status, got %s", tc.source, run.Status)
		}
	}
}

func TestRunPartialOutputOnFailure(t *testing.T) {
	s := newTestServer(t, Config{})
	var run RunSummary
	doJSON(t, s, http.MethodPost, "/api/run", SourceRequest{Source: "print(\"before\")\nprint(head([]))"}, &run)
	if run.Output != "before\n" {
		t.Fatalf("expected output produced before the error, got %q", run.Output)
	}
}

func TestPanickingBuiltinDoesNotStopServer(t *testing.T) {
	registry := spl.NewRegistry(spl.FunctionRegistryOptions{})
	if err := registry.Register("explode", func(*spl.CallContext, []spl.Value) (spl.Value, error) {
		panic("builtin blew up")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	s := newTestServer(t, Config{Registry: registry})
	if code := doJSON(t, s, http.MethodPost, "/api/run", SourceRequest{Source: "explode()"}, nil); code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from a panicking builtin, got %d", code)
	}
	var run RunSummary
	if code := doJSON(t, s, http.MethodPost, "/api/run", SourceRequest{Source: "print(1)"}, &run); code != http.StatusOK {
		t.Fatalf("expected the server to keep serving, got %d", code)
	}
	if run.Output != "1\n" {
		t.Fatalf("unexpected output %q", run.Output)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, Config{MaxSourceBytes: 16})
	if code := doJSON(t, s, http.MethodPost, "/api/run", SourceRequest{Source: "   "}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty source, got %d", code)
	}
	long := SourceRequest{Source: "print(\"" + strings.Repeat("x", 32) + "\")"}
	if code := doJSON(t, s, http.MethodPost, "/api/run", long, nil); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for oversized source, got %d", code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestTokensEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})
	var resp struct {
		Tokens []struct {
			Type    string `json:"type"`
			Literal string `json:"literal"`
		} `json:"tokens"`
	}
	if code := doJSON(t, s, http.MethodPost, "/api/tokens", SourceRequest{Source: "var x"}, &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(resp.Tokens) != 3 || resp.Tokens[0].Type != "VAR" || resp.Tokens[1].Literal != "x" || resp.Tokens[2].Type != "EOF" {
		t.Fatalf("unexpected tokens %+v", resp.Tokens)
	}
	if code := doJSON(t, s, http.MethodPost, "/api/tokens", SourceRequest{Source: "a ! b"}, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for lexical error, got %d", code)
	}
}

func TestParseEndpointUsesCache(t *testing.T) {
	s := newTestServer(t, Config{})
	req := SourceRequest{Source: "func add(a: int, b: int) {\n  return a + b\n}\nprint(add(1, 2))"}
	var first ParseResponse
	if code := doJSON(t, s, http.MethodPost, "/api/parse", req, &first); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if first.Cached || len(first.Functions) != 1 || first.Functions[0] != "add" || first.Statements != 1 {
		t.Fatalf("unexpected parse response %+v", first)
	}
	s.cache.Wait()
	var second ParseResponse
	doJSON(t, s, http.MethodPost, "/api/parse", req, &second)
	if !second.Cached {
		t.Fatalf("expected the second parse to hit the cache")
	}
	if second.AST != first.AST {
		t.Fatalf("cached AST differs:\n%s\n%s", first.AST, second.AST)
	}
}

func TestRunJournalSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	first := newTestServer(t, Config{JournalFile: path})
	var run RunSummary
	doJSON(t, first, http.MethodPost, "/api/run", SourceRequest{Source: `print("journaled")`}, &run)
	if err := first.journal.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	second := newTestServer(t, Config{JournalFile: path})
	t.Cleanup(func() { _ = second.journal.Close() })
	var restored RunSummary
	if code := doJSON(t, second, http.MethodGet, "/api/runs/"+run.ID, nil, &restored); code != http.StatusOK {
		t.Fatalf("expected journaled run after restart, got %d", code)
	}
	if restored.Output != "journaled\n" || restored.Status != "completed" {
		t.Fatalf("unexpected restored run %+v", restored)
	}
}
