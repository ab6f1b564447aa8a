package rules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/config"
)

type backend struct {
	mu       sync.Mutex
	rules    map[string]Rule
	requests []string
	bodies   []map[string]any
	nextID   int
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, r.Method+" "+r.URL.Path)

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	b.bodies = append(b.bodies, body)

	w.Header().Set("Content-Type", "application/json")
	id := strings.TrimPrefix(r.URL.Path, apiclient.PathRules+"/")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == apiclient.PathRules:
		list := make([]Rule, 0, len(b.rules))
		for _, rule := range b.rules {
			list = append(list, rule)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"rules": list})
	case r.Method == http.MethodPost && r.URL.Path == apiclient.PathRules:
		b.nextID++
		rule := fromBody(body)
		rule.ID = "r" + string(rune('0'+b.nextID))
		b.rules[rule.ID] = rule
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rule)
	case r.Method == http.MethodPut:
		if _, ok := b.rules[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Rule not found"}`))
			return
		}
		rule := fromBody(body)
		rule.ID = id
		b.rules[id] = rule
		_ = json.NewEncoder(w).Encode(rule)
	case r.Method == http.MethodDelete:
		delete(b.rules, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func fromBody(body map[string]any) Rule {
	raw, _ := json.Marshal(body)
	var r Rule
	_ = json.Unmarshal(raw, &r)
	return r
}

func (b *backend) last() (string, map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1], b.bodies[len(b.bodies)-1]
}

func newService(t *testing.T, seed ...Rule) (*Service, *backend) {
	t.Helper()
	b := &backend{rules: map[string]Rule{}}
	for _, r := range seed {
		b.rules[r.ID] = r
	}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	cfg := config.Defaults().API
	cfg.BaseURL = srv.URL
	return NewService(apiclient.New(cfg, nil)), b
}

func TestOpenCreateDefaults(t *testing.T) {
	t.Parallel()

	svc, b := newService(t)
	ed := NewEditor(svc)
	d := ed.OpenCreate()
	if d.Type != TypeAmount || d.Action != ActionScore || d.Priority != 10 || d.Score != 0 || !d.Enabled || d.Conditions == nil || len(d.Conditions) != 0 {
		t.Fatalf("unexpected defaults %+v", d)
	}

	ed.Edit(func(r *Rule) { r.Name = "  High amount  "; r.Conditions["amount_threshold"] = 5000.0 })
	saved, err := ed.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req, body := b.last()
	if req != "POST "+apiclient.PathRules {
		t.Fatalf("expected POST, got %s", req)
	}
	if body["name"] != "High amount" || body["priority"] != 10.0 || body["score"] != 0.0 || body["enabled"] != true {
		t.Fatalf("unexpected payload %v", body)
	}
	if saved.ID == "" || ed.IsOpen() {
		t.Fatalf("saved=%+v open=%v", saved, ed.IsOpen())
	}
}

func TestOpenEditRoundTrip(t *testing.T) {
	t.Parallel()

	existing := Rule{
		ID: "r9", Name: "Velocity", Description: "too many", Type: TypeVelocity, Action: ActionReview,
		Priority: 3, Enabled: false, Score: 42,
		Conditions: map[string]any{"window": map[string]any{"seconds": 60.0}},
	}
	svc, b := newService(t, existing)
	ed := NewEditor(svc)

	d := ed.OpenEdit(existing)
	if d.Name != existing.Name || d.Type != existing.Type || d.Priority != 3 || d.Score != 42 || d.Enabled {
		t.Fatalf("draft not pre-filled: %+v", d)
	}
	ed.Edit(func(r *Rule) { r.Conditions["window"].(map[string]any)["seconds"] = 120.0 })
	if existing.Conditions["window"].(map[string]any)["seconds"] != 60.0 {
		t.Fatal("editing the draft must not mutate the source rule")
	}

	if _, err := ed.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req, body := b.last()
	if req != "PUT "+apiclient.RulePath("r9") {
		t.Fatalf("expected PUT, got %s", req)
	}
	if body["type"] != "velocity" || body["action"] != "review" || body["priority"] != 3.0 {
		t.Fatalf("unexpected payload %v", body)
	}
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	svc, b := newService(t)
	ed := NewEditor(svc)

	cases := map[string]func(*Rule){
		"missing name":  func(r *Rule) { r.Name = " " },
		"long name":     func(r *Rule) { r.Name = strings.Repeat("n", 256) },
		"long desc":     func(r *Rule) { r.Name = "ok"; r.Description = strings.Repeat("d", 1001) },
		"bad type":      func(r *Rule) { r.Name = "ok"; r.Type = "ml" },
		"bad action":    func(r *Rule) { r.Name = "ok"; r.Action = "deny" },
		"priority high": func(r *Rule) { r.Name = "ok"; r.Priority = 1001 },
		"priority neg":  func(r *Rule) { r.Name = "ok"; r.Priority = -1 },
		"score high":    func(r *Rule) { r.Name = "ok"; r.Score = 100.5 },
	}
	for name, mutate := range cases {
		ed.OpenCreate()
		ed.Edit(mutate)
		if _, err := ed.Submit(context.Background()); !errors.Is(err, apiclient.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
		if !ed.IsOpen() || ed.Err() == "" {
			t.Fatalf("%s: editor should stay open with an error", name)
		}
	}
	if len(b.requests) != 0 {
		t.Fatalf("invalid drafts reached the backend: %v", b.requests)
	}

	ed.Close()
	if _, err := ed.Submit(context.Background()); !errors.Is(err, ErrEditorClosed) {
		t.Fatalf("expected ErrEditorClosed, got %v", err)
	}
}

func TestScreenLoadSortsAndDeletes(t *testing.T) {
	t.Parallel()

	svc, b := newService(t,
		Rule{ID: "a", Name: "A", Type: TypeAmount, Action: ActionBlock, Priority: 50, Conditions: map[string]any{}},
		Rule{ID: "b", Name: "B", Type: TypeAmount, Action: ActionBlock, Priority: 5, Conditions: map[string]any{}},
		Rule{ID: "c", Name: "C", Type: TypeAmount, Action: ActionBlock, Priority: 20, Conditions: map[string]any{}},
	)
	sc := NewScreen(svc)
	if err := sc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := sc.Rules()
	if len(got) != 3 || got[0].ID != "b" || got[1].ID != "c" || got[2].ID != "a" {
		t.Fatalf("unexpected order %+v", got)
	}

	if err := sc.Delete(context.Background(), "c"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := len(sc.Rules()); n != 2 {
		t.Fatalf("expected 2 rules after delete, got %d", n)
	}
	found := false
	for _, r := range b.requests {
		if r == "DELETE "+apiclient.RulePath("c") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no DELETE issued: %v", b.requests)
	}
}

func TestScreenLoadError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	}))
	t.Cleanup(srv.Close)
	cfg := config.Defaults().API
	cfg.BaseURL = srv.URL
	sc := NewScreen(NewService(apiclient.New(cfg, nil)))

	if err := sc.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if sc.Err() != "forbidden" || sc.Loading() {
		t.Fatalf("err=%q loading=%v", sc.Err(), sc.Loading())
	}
}

func TestToggle(t *testing.T) {
	t.Parallel()

	r := Rule{ID: "t1", Name: "T", Type: TypeCustom, Action: ActionAllow, Enabled: true, Conditions: map[string]any{}}
	svc, _ := newService(t, r)
	got, err := svc.Toggle(context.Background(), r)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got.Enabled || !r.Enabled {
		t.Fatalf("toggle result %+v, source %+v", got, r)
	}
}

func TestDecodeFillsDefaults(t *testing.T) {
	t.Parallel()

	r, err := Decode(strings.NewReader(`{"name":"Geo","type":"geography","conditions":{"countries":["KP"]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Priority != DefaultPriority || r.Score != DefaultScore || r.Action != ActionScore || !r.Enabled {
		t.Fatalf("defaults missing: %+v", r)
	}
	if r.Type != TypeGeography {
		t.Fatalf("type = %s", r.Type)
	}

	r, err = Decode(strings.NewReader(`{"name":"Z","priority":0,"enabled":false,"score":0}`))
	if err != nil {
		t.Fatal(err)
	}
	if r.Priority != 0 || r.Enabled {
		t.Fatalf("explicit zero values must survive: %+v", r)
	}

	if _, err := Decode(strings.NewReader(`{"name":"x","prio":1}`)); err == nil {
		t.Fatal("unknown fields must be rejected")
	}
}
