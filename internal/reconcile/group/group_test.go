package group

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/jimi-c/hue/internal/bridge"
)

const testToken = "0123456789abcdef0123456789abcdef"

func TestBuildAttrsNormalizesLights(t *testing.T) {
	changed, attrs, err := BuildAttrs(Params{
		Name:   "my_group",
		Lights: []string{"l1", "2", "l10"},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAttrs: %v", err)
	}
	if !changed {
		t.Error("missing group must always count as changed")
	}
	want := []string{"1", "2", "10"}
	if len(attrs.Lights) != len(want) {
		t.Fatalf("lights = %v, want %v", attrs.Lights, want)
	}
	for i := range want {
		if attrs.Lights[i] != want[i] {
			t.Errorf("lights[%d] = %q, want %q", i, attrs.Lights[i], want[i])
		}
	}
}

func TestBuildAttrsInvalidLight(t *testing.T) {
	_, _, err := BuildAttrs(Params{Name: "g", Lights: []string{"lamp"}}, nil)
	var paramErr *InvalidParamError
	if !errors.As(err, &paramErr) {
		t.Fatalf("error = %v, want *InvalidParamError", err)
	}
}

func TestBuildAttrsEnums(t *testing.T) {
	if _, _, err := BuildAttrs(Params{Name: "g", Type: "Disco"}, nil); err == nil {
		t.Error("invalid group type must fail")
	}
	if _, _, err := BuildAttrs(Params{Name: "g", Class: "Dungeon"}, nil); err == nil {
		t.Error("invalid group class must fail")
	}
	if _, _, err := BuildAttrs(Params{Name: "g", Type: "Room", Class: "Office"}, nil); err != nil {
		t.Errorf("valid enums rejected: %v", err)
	}
}

func TestBuildAttrsChangeDetection(t *testing.T) {
	current := &bridge.GroupInfo{
		Name:   "Office",
		Lights: []string{"1", "2"},
		Type:   "LightGroup",
		Class:  "Other",
	}

	tests := []struct {
		name    string
		params  Params
		changed bool
	}{
		{name: "identical", params: Params{Name: "Office", Lights: []string{"l1", "l2"}, Type: "LightGroup", Class: "Other"}, changed: false},
		{name: "renamed", params: Params{Name: "Den", Lights: []string{"l1", "l2"}}, changed: true},
		{name: "membership", params: Params{Name: "Office", Lights: []string{"l1"}}, changed: true},
		{name: "type_differs", params: Params{Name: "Office", Type: "Room"}, changed: true},
		{name: "sparse_matching", params: Params{Name: "Office"}, changed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, _, err := BuildAttrs(tt.params, current)
			if err != nil {
				t.Fatalf("BuildAttrs: %v", err)
			}
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

// fakeGroups serves the group endpoints for lifecycle tests.
type fakeGroups struct {
	mu      sync.Mutex
	groups  map[string]map[string]any
	creates int
	updates int
	deletes int
	nextID  int
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{groups: make(map[string]map[string]any), nextID: 1}
}

func (f *fakeGroups) start(t *testing.T) *bridge.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return bridge.NewClient(strings.TrimPrefix(srv.URL, "http://"), bridge.Options{Token: testToken})
}

func (f *fakeGroups) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/api/"+testToken)
	writeJSON := func(v any) { json.NewEncoder(w).Encode(v) }

	switch {
	case path == "" || path == "/":
		writeJSON(map[string]any{"lights": map[string]any{}, "groups": f.groups})
	case path == "/groups" && r.Method == http.MethodPost:
		var attrs map[string]any
		json.NewDecoder(r.Body).Decode(&attrs)
		id := strconv.Itoa(f.nextID)
		f.nextID++
		f.groups[id] = attrs
		f.creates++
		writeJSON([]map[string]any{{"success": map[string]any{"id": id}}})
	case strings.HasPrefix(path, "/groups/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/groups/")
		if g, ok := f.groups[id]; ok {
			doc := map[string]any{"action": map[string]any{"on": false}}
			for k, v := range g {
				doc[k] = v
			}
			writeJSON(doc)
		} else {
			writeJSON([]map[string]any{{"error": map[string]any{"type": 3, "address": path, "description": "resource not available"}}})
		}
	case strings.HasPrefix(path, "/groups/") && r.Method == http.MethodPut:
		id := strings.TrimPrefix(path, "/groups/")
		var attrs map[string]any
		json.NewDecoder(r.Body).Decode(&attrs)
		for k, v := range attrs {
			f.groups[id][k] = v
		}
		f.updates++
		writeJSON([]map[string]any{{"success": map[string]any{"/groups/" + id + "/name": attrs["name"]}}})
	case strings.HasPrefix(path, "/groups/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/groups/")
		delete(f.groups, id)
		f.deletes++
		writeJSON([]map[string]any{{"success": "/groups/" + id + " deleted"}})
	default:
		writeJSON([]map[string]any{{"error": map[string]any{"type": 3, "address": path, "description": "resource not available"}}})
	}
}

func TestRunAbsentMissingIsNoOp(t *testing.T) {
	fake := newFakeGroups()
	client := fake.start(t)

	report, err := Run(context.Background(), client, Params{Name: "ghost", State: StateAbsent})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Changed {
		t.Error("removing a missing group must be a no-op")
	}
	if fake.deletes != 0 {
		t.Errorf("deletes = %d, want 0", fake.deletes)
	}
}

func TestRunAbsentDeletes(t *testing.T) {
	fake := newFakeGroups()
	fake.groups["1"] = map[string]any{"name": "Office", "lights": []string{"1"}}
	client := fake.start(t)

	report, err := Run(context.Background(), client, Params{Name: "Office", State: StateAbsent})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Changed {
		t.Error("expected changed=true")
	}
	if fake.deletes != 1 {
		t.Errorf("deletes = %d, want 1", fake.deletes)
	}
}

func TestRunCreateRequiresLights(t *testing.T) {
	fake := newFakeGroups()
	client := fake.start(t)

	_, err := Run(context.Background(), client, Params{Name: "new_group", State: StatePresent})
	if err == nil {
		t.Fatal("creating without lights must fail")
	}
	if fake.creates != 0 {
		t.Errorf("creates = %d, want 0", fake.creates)
	}
}

func TestRunCreate(t *testing.T) {
	fake := newFakeGroups()
	client := fake.start(t)

	report, err := Run(context.Background(), client, Params{
		Name:   "new_group",
		State:  StatePresent,
		Lights: []string{"l1", "l2"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Changed {
		t.Error("expected changed=true")
	}
	if fake.creates != 1 {
		t.Errorf("creates = %d, want 1", fake.creates)
	}
	if report.Group == nil || report.Group.Name != "new_group" {
		t.Errorf("report must carry the created group, got %+v", report.Group)
	}
}

func TestRunUpdateNoOp(t *testing.T) {
	fake := newFakeGroups()
	fake.groups["2"] = map[string]any{"name": "Office", "lights": []string{"1", "2"}}
	client := fake.start(t)

	report, err := Run(context.Background(), client, Params{
		Name:   "Office",
		State:  StatePresent,
		Lights: []string{"1", "2"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Changed {
		t.Error("matching group must be a no-op")
	}
	if fake.updates != 0 {
		t.Errorf("updates = %d, want 0", fake.updates)
	}
}

func TestRunUpdateByID(t *testing.T) {
	fake := newFakeGroups()
	fake.groups["3"] = map[string]any{"name": "Office", "lights": []string{"1"}}
	client := fake.start(t)

	report, err := Run(context.Background(), client, Params{
		ID:     "g3",
		Name:   "Den",
		State:  StatePresent,
		Lights: []string{"1"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Changed || fake.updates != 1 {
		t.Errorf("changed=%v updates=%d, want one update", report.Changed, fake.updates)
	}
	if report.Group == nil || report.Group.Name != "Den" {
		t.Errorf("report group = %+v, want renamed group", report.Group)
	}
}

func TestRunPresentUnknownIDWithoutName(t *testing.T) {
	fake := newFakeGroups()
	client := fake.start(t)

	if _, err := Run(context.Background(), client, Params{ID: "g9", State: StatePresent}); err == nil {
		t.Fatal("unknown id without a name must fail")
	}
}

func TestRunInvalidID(t *testing.T) {
	fake := newFakeGroups()
	client := fake.start(t)

	_, err := Run(context.Background(), client, Params{ID: "group-one", State: StatePresent})
	var paramErr *InvalidParamError
	if !errors.As(err, &paramErr) {
		t.Fatalf("error = %v, want *InvalidParamError", err)
	}
}
