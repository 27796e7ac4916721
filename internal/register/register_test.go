package register

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jimi-c/hue/internal/bridge"
)

const testToken = "0123456789abcdef0123456789abcdef"

// fakeRegistrar rejects registration attempts until acceptAfter attempts
// have been made, mimicking an operator who takes a while to press the
// link button.
type fakeRegistrar struct {
	mu          sync.Mutex
	registered  bool
	attempts    int
	acceptAfter int
}

func (f *fakeRegistrar) start(t *testing.T) *bridge.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return bridge.NewClient(strings.TrimPrefix(srv.URL, "http://"), bridge.Options{Token: testToken})
}

func (f *fakeRegistrar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON := func(v any) { json.NewEncoder(w).Encode(v) }

	switch {
	case r.URL.Path == "/api" && r.Method == http.MethodPost:
		f.attempts++
		if f.attempts >= f.acceptAfter {
			f.registered = true
			writeJSON([]map[string]any{{"success": map[string]any{"username": testToken}}})
			return
		}
		writeJSON([]map[string]any{{"error": map[string]any{
			"type": 101, "address": "", "description": "link button not pressed",
		}}})
	case strings.HasPrefix(r.URL.Path, "/api/"+testToken):
		if !f.registered {
			writeJSON([]map[string]any{{"error": map[string]any{
				"type": 1, "address": "/", "description": "unauthorized user",
			}}})
			return
		}
		writeJSON(map[string]any{"lights": map[string]any{}, "groups": map[string]any{}})
	default:
		http.NotFound(w, r)
	}
}

func TestRunAlreadyRegistered(t *testing.T) {
	fake := &fakeRegistrar{registered: true}
	client := fake.start(t)

	report, err := Run(context.Background(), client, DefaultRetries, time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Changed {
		t.Error("already-registered host must report changed=false")
	}
	if fake.attempts != 0 {
		t.Errorf("attempts = %d, want 0", fake.attempts)
	}
	if report.Config == nil {
		t.Error("report must carry the bridge config")
	}
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	fake := &fakeRegistrar{acceptAfter: 3}
	client := fake.start(t)

	report, err := Run(context.Background(), client, 6, time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Changed {
		t.Error("fresh registration must report changed=true")
	}
	if fake.attempts != 3 {
		t.Errorf("attempts = %d, want 3", fake.attempts)
	}
	if report.Config == nil {
		t.Error("report must carry the bridge config")
	}
}

// retries counts retries after the first attempt, so retries=2 allows
// three tries total before giving up.
func TestRunExhaustsRetries(t *testing.T) {
	fake := &fakeRegistrar{acceptAfter: 100}
	client := fake.start(t)

	_, err := Run(context.Background(), client, 2, time.Millisecond)
	if err == nil {
		t.Fatal("expected registration failure")
	}
	if fake.attempts != 3 {
		t.Errorf("attempts = %d, want 3", fake.attempts)
	}
}

func TestRunCancelledDuringWait(t *testing.T) {
	fake := &fakeRegistrar{acceptAfter: 100}
	client := fake.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, client, 5, time.Second)
	if err == nil {
		t.Fatal("expected context error")
	}
	if fake.attempts > 1 {
		t.Errorf("attempts = %d, want at most 1 after cancellation", fake.attempts)
	}
}
