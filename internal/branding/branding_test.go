package branding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/config"
)

type recordingChrome struct {
	mu     sync.Mutex
	themes []Theme
}

func (r *recordingChrome) Apply(t Theme) {
	r.mu.Lock()
	r.themes = append(r.themes, t)
	r.mu.Unlock()
}

func (r *recordingChrome) last() Theme {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.themes[len(r.themes)-1]
}

func (r *recordingChrome) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.themes)
}

func newClient(t *testing.T, h http.Handler) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.Defaults().API
	cfg.BaseURL = srv.URL
	cfg.Retry.MaxAttempts = 1
	return apiclient.New(cfg, nil)
}

func TestDefaultsAppliedBeforeLoad(t *testing.T) {
	t.Parallel()

	chrome := &recordingChrome{}
	s := NewStore(nil, chrome)
	if chrome.count() != 1 {
		t.Fatalf("expected defaults applied once, got %d", chrome.count())
	}
	th := chrome.last()
	if th.Title != "AlgoShield" || th.Vars[VarPrimary] != "#3B82F6" || th.Vars[VarSecondary] != "#10B981" || th.Vars[VarHeaderBackground] != "#1e1e1e" {
		t.Fatalf("unexpected default theme %+v", th)
	}
	if !s.Loading() {
		t.Fatal("store should be loading until Load runs")
	}
}

func TestLoadAppliesConfig(t *testing.T) {
	t.Parallel()

	fav := "/brand/favicon.ico"
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != apiclient.PathBranding {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Config{
			ID: 1, AppName: "Acme Risk", FaviconURL: &fav,
			PrimaryColor: "#111111", SecondaryColor: "#222222", HeaderColor: "#333333",
		})
	}))

	chrome := &recordingChrome{}
	s := NewStore(client, chrome)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	th := chrome.last()
	if th.Title != "Acme Risk" || th.Vars[VarHeaderBackground] != "#333333" || th.FaviconURL != fav {
		t.Fatalf("unexpected theme %+v", th)
	}
	if s.Loading() || s.Err() != "" {
		t.Fatalf("loading=%v err=%q", s.Loading(), s.Err())
	}
	if c := s.Config(); c == nil || c.AppName != "Acme Risk" {
		t.Fatalf("config = %+v", c)
	}
}

func TestLoadFailureFallsBack(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
	}))

	chrome := &recordingChrome{}
	s := NewStore(client, chrome)
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.Err() != "database unavailable" {
		t.Fatalf("Err = %q", s.Err())
	}
	if s.Loading() {
		t.Fatal("loading must clear on failure")
	}
	if th := chrome.last(); th.Title != DefaultAppName {
		t.Fatalf("expected defaults after failure, got %+v", th)
	}
}

func TestLoadFailureKeepsLastTheme(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"app_name":"Tenant","primary_color":"#123456","secondary_color":"#111","header_color":"#222"}`))
	}))

	chrome := &recordingChrome{}
	s := NewStore(client, chrome)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	applied := chrome.count()

	fail.Store(true)
	if err := s.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if chrome.count() != applied {
		t.Fatalf("failed reload must not push a theme, applied %d -> %d", applied, chrome.count())
	}
	if th := chrome.last(); th.Title != "Tenant" || th.Vars[VarPrimary] != "#123456" {
		t.Fatalf("tenant theme lost: %+v", th)
	}
	if c := s.Config(); c == nil || c.AppName != "Tenant" {
		t.Fatalf("config = %+v", c)
	}
	if s.Err() != "upstream down" {
		t.Fatalf("Err = %q", s.Err())
	}
}

func TestUpdateValidation(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	s := NewStore(client, nil)

	valid := UpdateRequest{AppName: "Acme", PrimaryColor: "#fff", SecondaryColor: "#00FF00", HeaderColor: "#12345678"}
	cases := map[string]func(*UpdateRequest){
		"empty name":     func(r *UpdateRequest) { r.AppName = "   " },
		"long name":      func(r *UpdateRequest) { r.AppName = string(make([]byte, 101)) },
		"bad primary":    func(r *UpdateRequest) { r.PrimaryColor = "blue" },
		"short hex":      func(r *UpdateRequest) { r.SecondaryColor = "#12" },
		"missing header": func(r *UpdateRequest) { r.HeaderColor = "" },
	}
	for name, mutate := range cases {
		req := valid
		mutate(&req)
		if _, err := s.Update(context.Background(), req); !errors.Is(err, apiclient.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatal("invalid updates must not reach the backend")
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestUpdateAppliesResult(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		var req UpdateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Config{ID: 1, AppName: req.AppName, PrimaryColor: req.PrimaryColor, SecondaryColor: req.SecondaryColor, HeaderColor: req.HeaderColor})
	}))
	chrome := &recordingChrome{}
	s := NewStore(client, chrome)

	c, err := s.Update(context.Background(), UpdateRequest{AppName: " Acme ", PrimaryColor: "#000000", SecondaryColor: "#111111", HeaderColor: "#222222"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if c.AppName != "Acme" || chrome.last().Title != "Acme" {
		t.Fatalf("unexpected result %+v / %+v", c, chrome.last())
	}
}

func TestPollReloads(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"app_name":"Polled","primary_color":"#000","secondary_color":"#111","header_color":"#222"}`))
	}))
	s := NewStore(client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Poll(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for hits.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("poll did not reload, hits=%d", hits.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestPollLoadsImmediately(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"app_name":"First","primary_color":"#000","secondary_color":"#111","header_color":"#222"}`))
	}))
	chrome := &recordingChrome{}
	s := NewStore(client, chrome)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Poll(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for chrome.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("first load waited for the interval")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
	if hits.Load() != 1 || chrome.last().Title != "First" {
		t.Fatalf("hits=%d theme=%+v", hits.Load(), chrome.last())
	}
}
