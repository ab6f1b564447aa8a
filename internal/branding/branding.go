// Package branding loads the tenant's look-and-feel from the backend and
// pushes it to whatever renders the console chrome.
package branding

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/obs"
)

const (
	DefaultAppName        = "AlgoShield"
	DefaultPrimaryColor   = "#3B82F6"
	DefaultSecondaryColor = "#10B981"
	DefaultHeaderColor    = "#1e1e1e"

	VarPrimary          = "--color-primary"
	VarSecondary        = "--color-secondary"
	VarHeaderBackground = "--color-header-background"

	maxAppNameLength = 100
)

type Config struct {
	ID             int       `json:"id"`
	AppName        string    `json:"app_name"`
	IconURL        *string   `json:"icon_url,omitempty"`
	FaviconURL     *string   `json:"favicon_url,omitempty"`
	PrimaryColor   string    `json:"primary_color"`
	SecondaryColor string    `json:"secondary_color"`
	HeaderColor    string    `json:"header_color"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
	UpdatedAt      time.Time `json:"updated_at,omitzero"`
}

// UpdateRequest is the admin mutation body for PUT /branding.
type UpdateRequest struct {
	AppName        string  `json:"app_name"`
	IconURL        *string `json:"icon_url,omitempty"`
	FaviconURL     *string `json:"favicon_url,omitempty"`
	PrimaryColor   string  `json:"primary_color"`
	SecondaryColor string  `json:"secondary_color"`
	HeaderColor    string  `json:"header_color"`
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

func (r UpdateRequest) Validate() error {
	name := strings.TrimSpace(r.AppName)
	if name == "" {
		return apiclient.Validation("App name is required")
	}
	if utf8.RuneCountInString(name) > maxAppNameLength {
		return apiclient.Validation("App name must be at most 100 characters")
	}
	for _, c := range []struct{ label, value string }{
		{"Primary color", r.PrimaryColor},
		{"Secondary color", r.SecondaryColor},
		{"Header color", r.HeaderColor},
	} {
		if !hexColor.MatchString(c.value) {
			return apiclient.Validation(c.label + " must be a hex color like #3B82F6")
		}
	}
	return nil
}

// Theme is what the chrome renders: document title, CSS custom properties
// and an optional favicon.
type Theme struct {
	Title      string
	Vars       map[string]string
	FaviconURL string
}

// Chrome receives every theme change.
type Chrome interface {
	Apply(Theme)
}

// DefaultTheme is applied before anything is loaded and whenever loading fails.
func DefaultTheme() Theme {
	return Theme{
		Title: DefaultAppName,
		Vars: map[string]string{
			VarPrimary:          DefaultPrimaryColor,
			VarSecondary:        DefaultSecondaryColor,
			VarHeaderBackground: DefaultHeaderColor,
		},
	}
}

// ThemeFor maps a stored config onto chrome values.
func ThemeFor(c Config) Theme {
	t := Theme{
		Title: c.AppName,
		Vars: map[string]string{
			VarPrimary:          c.PrimaryColor,
			VarSecondary:        c.SecondaryColor,
			VarHeaderBackground: c.HeaderColor,
		},
	}
	if c.FaviconURL != nil {
		t.FaviconURL = *c.FaviconURL
	}
	return t
}

type Store struct {
	api    apiclient.Requester
	chrome Chrome

	mu      sync.RWMutex
	config  *Config
	loading bool
	err     string
}

// NewStore applies the default theme synchronously so the chrome never
// renders unbranded.
func NewStore(api apiclient.Requester, chrome Chrome) *Store {
	s := &Store{api: api, chrome: chrome, loading: true}
	s.apply(DefaultTheme())
	return s
}

// Load fetches the public branding config. On failure the message is kept
// for Err; the last loaded config stays applied, and the defaults are
// re-applied only when nothing has loaded yet.
func (s *Store) Load(ctx context.Context) error {
	s.begin()
	var c Config
	_, err := s.api.Get(ctx, apiclient.PathBranding, &c)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = errorText(err, "Failed to load branding")
		loaded := s.config != nil
		s.mu.Unlock()
		obs.Warn("load branding failed", map[string]any{"error": err.Error(), "keeping_last": loaded})
		if !loaded {
			s.apply(DefaultTheme())
		}
		return err
	}
	s.config = &c
	s.mu.Unlock()
	s.apply(ThemeFor(c))
	return nil
}

// Update validates and saves a new branding config (admin only on the
// backend) and applies the result.
func (s *Store) Update(ctx context.Context, req UpdateRequest) (Config, error) {
	if err := req.Validate(); err != nil {
		s.setErr(err.Error())
		return Config{}, err
	}
	req.AppName = strings.TrimSpace(req.AppName)

	s.begin()
	var c Config
	_, err := s.api.Put(ctx, apiclient.PathBranding, req, &c)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = errorText(err, "Failed to update branding")
		s.mu.Unlock()
		return Config{}, err
	}
	s.config = &c
	s.mu.Unlock()
	s.apply(ThemeFor(c))
	return c, nil
}

// Poll loads once right away, then reloads every interval until ctx ends.
// A non-positive interval stops after the first load. Failures are already
// recorded by Load.
func (s *Store) Poll(ctx context.Context, interval time.Duration) {
	if err := s.Load(ctx); errors.Is(err, context.Canceled) || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Load(ctx); err != nil && errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// Config returns the last loaded config, or nil.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.config == nil {
		return nil
	}
	cp := *s.config
	return &cp
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last failure message, or "".
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) setErr(msg string) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
}

func (s *Store) apply(t Theme) {
	if s.chrome != nil {
		s.chrome.Apply(t)
	}
}

func errorText(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
