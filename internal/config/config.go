// Package config resolves the console configuration from defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when CONSOLE_CONFIG is unset. A missing file is fine.
const DefaultFile = "console.yaml"

// Retry describes the backoff policy for idempotent API requests.
type Retry struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// API configures the backend client.
type API struct {
	BaseURL string
	Timeout time.Duration
	Retry   Retry
}

// UI holds values published to the browser bundle.
type UI struct {
	ToastDuration   time.Duration
	PollingInterval time.Duration
}

// Server configures the companion process in front of the UI bundle.
type Server struct {
	Addr          string
	DistDir       string
	ServiceName   string
	BackendURL    string
	RateBurst     int
	RatePerSecond int
	CORSOrigins   []string
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means clients are identified by their socket address.
	TrustedProxies []string
}

// Storage selects where client state (bearer token, locale) is persisted.
type Storage struct {
	Path     string
	RedisURL string
}

// Config is the immutable, fully resolved configuration.
type Config struct {
	API     API
	UI      UI
	Server  Server
	Storage Storage
	Locale  string
}

// Defaults returns the documented fallback values.
func Defaults() Config {
	return Config{
		API: API{
			Timeout: 30 * time.Second,
			Retry: Retry{
				MaxAttempts:  3,
				InitialDelay: time.Second,
				MaxDelay:     10 * time.Second,
				Multiplier:   2.0,
			},
		},
		UI: UI{
			ToastDuration:   5 * time.Second,
			PollingInterval: 10 * time.Second,
		},
		Server: Server{
			Addr:          ":3000",
			DistDir:       "dist",
			ServiceName:   "algoshield-ui",
			RateBurst:     100,
			RatePerSecond: 50,
		},
		Storage: Storage{
			Path: defaultStatePath(),
		},
	}
}

// configFile mirrors the YAML schema. Zero values leave defaults untouched.
type configFile struct {
	API struct {
		BaseURL   string `yaml:"base_url"`
		TimeoutMS int    `yaml:"timeout_ms"`
		Retry     struct {
			MaxAttempts    int     `yaml:"max_attempts"`
			InitialDelayMS int     `yaml:"initial_delay_ms"`
			MaxDelayMS     int     `yaml:"max_delay_ms"`
			Multiplier     float64 `yaml:"multiplier"`
		} `yaml:"retry"`
	} `yaml:"api"`
	UI struct {
		ToastDurationMS   int `yaml:"toast_duration_ms"`
		PollingIntervalMS int `yaml:"polling_interval_ms"`
	} `yaml:"ui"`
	Server struct {
		Addr           string   `yaml:"addr"`
		DistDir        string   `yaml:"dist_dir"`
		ServiceName    string   `yaml:"service_name"`
		BackendURL     string   `yaml:"backend_url"`
		RateBurst      int      `yaml:"rate_burst"`
		RatePerSecond  int      `yaml:"rate_per_second"`
		CORSOrigins    []string `yaml:"cors_origins"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`
	Storage struct {
		Path     string `yaml:"path"`
		RedisURL string `yaml:"redis_url"`
	} `yaml:"storage"`
	Locale string `yaml:"locale"`
}

// Load resolves configuration using CONSOLE_CONFIG (or DefaultFile) as the
// file layer.
func Load() (Config, error) {
	return LoadFile(envString("CONSOLE_CONFIG", DefaultFile))
}

// LoadFile resolves defaults -> file -> env. Only a malformed file is an
// error; unparseable env values fall back silently.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			var f configFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
			f.apply(&cfg)
		}
	}

	cfg.API.BaseURL = strings.TrimRight(envString("CONSOLE_API_URL", cfg.API.BaseURL), "/")
	cfg.API.Timeout = envMillis("CONSOLE_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.Retry.MaxAttempts = envInt("CONSOLE_API_RETRY_MAX_ATTEMPTS", cfg.API.Retry.MaxAttempts)
	cfg.API.Retry.InitialDelay = envMillis("CONSOLE_API_RETRY_INITIAL_DELAY", cfg.API.Retry.InitialDelay)
	cfg.API.Retry.MaxDelay = envMillis("CONSOLE_API_RETRY_MAX_DELAY", cfg.API.Retry.MaxDelay)
	cfg.API.Retry.Multiplier = envFloat("CONSOLE_API_RETRY_MULTIPLIER", cfg.API.Retry.Multiplier)

	cfg.UI.ToastDuration = envMillis("CONSOLE_UI_TOAST_DURATION", cfg.UI.ToastDuration)
	cfg.UI.PollingInterval = envMillis("CONSOLE_UI_POLLING_INTERVAL", cfg.UI.PollingInterval)

	if port := envString("PORT", ""); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = envString("CONSOLE_ADDR", cfg.Server.Addr)
	cfg.Server.DistDir = envString("CONSOLE_DIST_DIR", cfg.Server.DistDir)
	cfg.Server.ServiceName = envString("CONSOLE_SERVICE_NAME", cfg.Server.ServiceName)
	cfg.Server.BackendURL = strings.TrimRight(envString("CONSOLE_BACKEND_URL", cfg.Server.BackendURL), "/")
	cfg.Server.RateBurst = envInt("CONSOLE_RATE_BURST", cfg.Server.RateBurst)
	cfg.Server.RatePerSecond = envInt("CONSOLE_RATE_PER_SECOND", cfg.Server.RatePerSecond)
	if raw := envString("CONSOLE_CORS_ORIGINS", ""); raw != "" {
		cfg.Server.CORSOrigins = splitList(raw)
	}
	if raw := envString("CONSOLE_TRUSTED_PROXIES", ""); raw != "" {
		cfg.Server.TrustedProxies = splitList(raw)
	}
	if cfg.Server.BackendURL == "" {
		cfg.Server.BackendURL = cfg.API.BaseURL
	}

	cfg.Storage.Path = envString("CONSOLE_STATE_FILE", cfg.Storage.Path)
	cfg.Storage.RedisURL = envString("CONSOLE_REDIS_URL", cfg.Storage.RedisURL)
	cfg.Locale = envString("CONSOLE_LOCALE", cfg.Locale)

	return cfg, nil
}

func (f configFile) apply(cfg *Config) {
	if f.API.BaseURL != "" {
		cfg.API.BaseURL = f.API.BaseURL
	}
	if f.API.TimeoutMS > 0 {
		cfg.API.Timeout = millis(f.API.TimeoutMS)
	}
	if f.API.Retry.MaxAttempts > 0 {
		cfg.API.Retry.MaxAttempts = f.API.Retry.MaxAttempts
	}
	if f.API.Retry.InitialDelayMS > 0 {
		cfg.API.Retry.InitialDelay = millis(f.API.Retry.InitialDelayMS)
	}
	if f.API.Retry.MaxDelayMS > 0 {
		cfg.API.Retry.MaxDelay = millis(f.API.Retry.MaxDelayMS)
	}
	if f.API.Retry.Multiplier > 0 {
		cfg.API.Retry.Multiplier = f.API.Retry.Multiplier
	}
	if f.UI.ToastDurationMS > 0 {
		cfg.UI.ToastDuration = millis(f.UI.ToastDurationMS)
	}
	if f.UI.PollingIntervalMS > 0 {
		cfg.UI.PollingInterval = millis(f.UI.PollingIntervalMS)
	}
	if f.Server.Addr != "" {
		cfg.Server.Addr = f.Server.Addr
	}
	if f.Server.DistDir != "" {
		cfg.Server.DistDir = f.Server.DistDir
	}
	if f.Server.ServiceName != "" {
		cfg.Server.ServiceName = f.Server.ServiceName
	}
	if f.Server.BackendURL != "" {
		cfg.Server.BackendURL = f.Server.BackendURL
	}
	if f.Server.RateBurst > 0 {
		cfg.Server.RateBurst = f.Server.RateBurst
	}
	if f.Server.RatePerSecond > 0 {
		cfg.Server.RatePerSecond = f.Server.RatePerSecond
	}
	if len(f.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = append([]string(nil), f.Server.CORSOrigins...)
	}
	if len(f.Server.TrustedProxies) > 0 {
		cfg.Server.TrustedProxies = append([]string(nil), f.Server.TrustedProxies...)
	}
	if f.Storage.Path != "" {
		cfg.Storage.Path = f.Storage.Path
	}
	if f.Storage.RedisURL != "" {
		cfg.Storage.RedisURL = f.Storage.RedisURL
	}
	if f.Locale != "" {
		cfg.Locale = f.Locale
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".algoshield-console.json"
	}
	return filepath.Join(home, ".algoshield", "console.json")
}

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// envString returns the env value when non-empty, otherwise fallback.
func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envMillis reads a millisecond count into a Duration.
func envMillis(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return millis(v)
}

// splitList splits a comma-separated env value, dropping blanks and
// trailing slashes.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimRight(strings.TrimSpace(p), "/"); v != "" {
			out = append(out, v)
		}
	}
	return out
}
