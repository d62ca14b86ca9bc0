// Package testutil provides shared test helpers: vaults, catalogs and fake
// model backends.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/llm"
	"github.com/starford/chatnotes/internal/storage"
)

// FixedTime is the clock used by helpers that need a deterministic now.
var FixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

// TestDB creates a temporary SQLite catalog that is automatically closed.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.FS.
func TestVault(t *testing.T, opts ...storage.Option) (string, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// FakeGateway returns a canned result and records the prompts it received.
type FakeGateway struct {
	mu     sync.Mutex
	Result llm.Result
	Calls  []string
}

// Reply builds a FakeGateway answering every call with text.
func Reply(text string) *FakeGateway {
	return &FakeGateway{Result: llm.Result{Text: text, Protocol: llm.ProtocolOpenAI}}
}

// Chat implements the pipeline's gateway interface.
func (g *FakeGateway) Chat(_ context.Context, _, user string) llm.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = append(g.Calls, user)
	return g.Result
}

// CallCount returns how many prompts were sent.
func (g *FakeGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

// LLMServer is a fake model host that speaks both chat protocols.
type LLMServer struct {
	*httptest.Server

	mu    sync.Mutex
	paths []string
}

// NewLLMServer starts a fake host. A status of 0 or 200 answers with content;
// anything else fails that protocol with the given status.
func NewLLMServer(t *testing.T, openaiStatus, nativeStatus int, content string) *LLMServer {
	t.Helper()
	s := &LLMServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()

		var status int
		var body any
		switch r.URL.Path {
		case "/v1/chat/completions":
			status = openaiStatus
			body = map[string]any{
				"object":  "chat.completion",
				"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}}},
			}
		case "/api/chat":
			status = nativeStatus
			body = map[string]any{"message": map[string]string{"role": "assistant", "content": content}, "done": true}
		default:
			http.NotFound(w, r)
			return
		}
		if status != 0 && status != http.StatusOK {
			http.Error(w, `{"error":"unavailable"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Paths returns the request paths seen so far, in order.
func (s *LLMServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Gateway returns a local-mode gateway pointed at the fake host.
func (s *LLMServer) Gateway() *llm.Gateway {
	return llm.New(llm.Config{
		BaseURL:        s.URL,
		Model:          "test-model",
		Temperature:    0.2,
		MaxTokens:      1600,
		Timeout:        2 * time.Second,
		EnableFallback: true,
	}, nil, nil)
}
