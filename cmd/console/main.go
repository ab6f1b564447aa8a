package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"algoshield.org/console/internal/apiclient"
	"algoshield.org/console/internal/branding"
	"algoshield.org/console/internal/config"
	"algoshield.org/console/internal/console"
	"algoshield.org/console/internal/obs"
	"algoshield.org/console/internal/ui"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// loadDotenv reads the first .env found walking up two levels. Variables
// already set in the environment win.
func loadDotenv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				obs.Warn("dotenv load failed", map[string]any{"path": p, "error": err.Error()})
				return
			}
			obs.Info("dotenv loaded", map[string]any{"path": p})
			return
		}
	}
}

func main() {
	loadDotenv()
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := console.New(cfg, ui.NewShell())
	if err != nil {
		log.Fatalf("console: %v", err)
	}

	// Branding is public, so the server fetches it without a token. The
	// server re-renders the entry document and notifies /events listeners
	// whenever it changes. Defaults are already applied, so the first load
	// runs in the background and a slow backend never delays listening.
	if cfg.Server.BackendURL != "" {
		apiCfg := cfg.API
		apiCfg.BaseURL = cfg.Server.BackendURL
		store := branding.NewStore(apiclient.New(apiCfg, nil), srv)
		go store.Poll(ctx, cfg.UI.PollingInterval)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.API.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	httpSrv.RegisterOnShutdown(srv.Close)

	obs.Info("console starting", map[string]any{
		"addr":        httpSrv.Addr,
		"version":     version,
		"dist_dir":    cfg.Server.DistDir,
		"backend_url": cfg.Server.BackendURL,
		"service":     cfg.Server.ServiceName,
	})

	errc := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
	case <-ctx.Done():
	}
	obs.Info("console shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		obs.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
	obs.Info("console stopped", nil)
}
