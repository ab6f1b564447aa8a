// Package console is the companion HTTP server in front of the console UI
// bundle: static assets with SPA fallback, a reverse proxy to the REST API,
// health, metrics and the runtime config the bundle reads at start-up.
package console

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"algoshield.org/console/internal/branding"
	"algoshield.org/console/internal/config"
	"algoshield.org/console/internal/obs"
	"algoshield.org/console/internal/stream"
	"algoshield.org/console/internal/ui"
)

type Server struct {
	cfg     config.Config
	shell   *ui.Shell
	distDir string
	proxy   http.Handler
	router  chi.Router
	now     func() time.Time
	trust   proxyTrust

	hub      *stream.Hub[branding.Theme]
	themeMu  sync.Mutex
	theme    branding.Theme
	hasTheme bool
}

// New wires the router. The entry document is read once from the dist
// directory; when it is missing the built-in document is served.
func New(cfg config.Config, shell *ui.Shell) (*Server, error) {
	dist, err := filepath.Abs(cfg.Server.DistDir)
	if err != nil {
		return nil, fmt.Errorf("resolve dist dir: %w", err)
	}
	proxy, err := newProxy(cfg.Server.BackendURL)
	if err != nil {
		return nil, err
	}
	trust, err := newProxyTrust(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if shell == nil {
		shell = ui.NewShell()
	}

	doc, err := os.ReadFile(filepath.Join(dist, indexFile))
	switch {
	case err == nil:
		shell.SetDocument(doc)
	case errors.Is(err, fs.ErrNotExist):
		obs.Warn("entry document missing, serving built-in shell", map[string]any{"dist_dir": dist})
	default:
		return nil, fmt.Errorf("read entry document: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		shell:   shell,
		distDir: dist,
		proxy:   proxy,
		now:     time.Now,
		trust:   trust,
		hub:     stream.New[branding.Theme](4),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	if origins := s.cfg.Server.CORSOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerRequestID},
			ExposedHeaders:   []string{headerRequestID},
			AllowCredentials: false,
			MaxAge:           600,
		}))
	}
	r.Use(RateLimit(s.cfg.Server.RateBurst, s.cfg.Server.RatePerSecond, s.trust.clientIP))
	r.Use(obs.Instrument)

	r.Get("/health", s.health)
	r.Handle("/metrics", obs.Handler())
	r.Get("/config.json", s.runtimeConfig)
	r.Get("/events", s.events)
	r.Handle("/api", s.proxy)
	r.Handle("/api/*", s.proxy)
	r.NotFound(s.static)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		methodNotAllowed(w, r)
	})
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Shell exposes the document renderer. Branding stores should drive the
// Server itself (see Apply) so open event streams are notified too.
func (s *Server) Shell() *ui.Shell { return s.shell }

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"service":   s.cfg.Server.ServiceName,
	})
}

// RuntimeConfig is what the browser bundle reads from /config.json.
type RuntimeConfig struct {
	API struct {
		BaseURL   string `json:"baseURL"`
		TimeoutMS int64  `json:"timeout"`
		Retry     struct {
			MaxAttempts    int     `json:"maxAttempts"`
			InitialDelayMS int64   `json:"initialDelay"`
			MaxDelayMS     int64   `json:"maxDelay"`
			Multiplier     float64 `json:"backoffMultiplier"`
		} `json:"retry"`
	} `json:"api"`
	UI struct {
		ToastDurationMS   int64 `json:"toastDuration"`
		PollingIntervalMS int64 `json:"pollingInterval"`
	} `json:"ui"`
}

// BrowserConfig projects the resolved config onto the bundle's shape. The
// bundle talks to the API through this server, so its base URL is empty
// (same origin).
func BrowserConfig(cfg config.Config) RuntimeConfig {
	var rc RuntimeConfig
	rc.API.TimeoutMS = cfg.API.Timeout.Milliseconds()
	rc.API.Retry.MaxAttempts = cfg.API.Retry.MaxAttempts
	rc.API.Retry.InitialDelayMS = cfg.API.Retry.InitialDelay.Milliseconds()
	rc.API.Retry.MaxDelayMS = cfg.API.Retry.MaxDelay.Milliseconds()
	rc.API.Retry.Multiplier = cfg.API.Retry.Multiplier
	rc.UI.ToastDurationMS = cfg.UI.ToastDuration.Milliseconds()
	rc.UI.PollingIntervalMS = cfg.UI.PollingInterval.Milliseconds()
	return rc
}

func (s *Server) runtimeConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, BrowserConfig(s.cfg))
}
