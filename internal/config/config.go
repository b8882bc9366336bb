// Package config loads sourcer settings: defaults, then an optional YAML file, then the
// environment (including a .env file), then validation. CLI flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Backend struct {
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	TokenFile      string        `yaml:"token_file"`
	CAPath         string        `yaml:"ca_path"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// StreamTimeout bounds a whole streaming request. Zero means no limit.
	StreamTimeout time.Duration `yaml:"stream_timeout"`
}

type Reconcile struct {
	// ClearDelay is how long a record stays marked loading after its result arrives. Zero clears
	// immediately.
	ClearDelay time.Duration `yaml:"clear_delay"`
}

// StoreClearDelay converts ClearDelay to reconcile.StoreOptions.ClearDelay, where zero selects the
// store default and a negative value clears immediately.
func (r Reconcile) StoreClearDelay() time.Duration {
	if r.ClearDelay <= 0 {
		return -1
	}
	return r.ClearDelay
}

type Persist struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
}

type Gemini struct {
	APIKey         string        `yaml:"-"`
	Model          string        `yaml:"model"`
	BaseURL        string        `yaml:"base_url"`
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MockBackend struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

type Config struct {
	Backend     Backend     `yaml:"backend"`
	Reconcile   Reconcile   `yaml:"reconcile"`
	Persist     Persist     `yaml:"persist"`
	Gemini      Gemini      `yaml:"gemini"`
	Logging     Logging     `yaml:"logging"`
	MockBackend MockBackend `yaml:"mock_backend"`
}

func Default() Config {
	return Config{
		Backend: Backend{
			RequestTimeout: 60 * time.Second,
		},
		Reconcile: Reconcile{ClearDelay: 300 * time.Millisecond},
		Persist: Persist{
			Workers:        4,
			MaxRetries:     3,
			RequestTimeout: 30 * time.Second,
		},
		Gemini: Gemini{
			Model:          "gemini-2.5-flash",
			Workers:        4,
			MaxRetries:     3,
			RequestTimeout: 60 * time.Second,
		},
		Logging:     Logging{Level: "info", Format: "console"},
		MockBackend: MockBackend{Addr: "127.0.0.1:8089"},
	}
}

// Load reads path (may be empty or missing) and the environment. A .env file in the working
// directory is loaded first when present; variables already set win over it.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
	str("SOURCER_BACKEND_URL", &cfg.Backend.URL)
	str("SOURCER_TOKEN", &cfg.Backend.Token)
	str("SOURCER_TOKEN_FILE", &cfg.Backend.TokenFile)
	str("SOURCER_CA_PATH", &cfg.Backend.CAPath)
	str("SOURCER_LOG_LEVEL", &cfg.Logging.Level)
	str("SOURCER_LOG_FORMAT", &cfg.Logging.Format)
	str("SOURCER_MOCK_ADDR", &cfg.MockBackend.Addr)
	str("SOURCER_MOCK_DB", &cfg.MockBackend.DBPath)
	str("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	str("GEMINI_MODEL", &cfg.Gemini.Model)
	str("GEMINI_BASE_URL", &cfg.Gemini.BaseURL)

	var err error
	if cfg.Backend.RequestTimeout, err = envDuration("SOURCER_REQUEST_TIMEOUT", cfg.Backend.RequestTimeout); err != nil {
		return err
	}
	if cfg.Backend.StreamTimeout, err = envDuration("SOURCER_STREAM_TIMEOUT", cfg.Backend.StreamTimeout); err != nil {
		return err
	}
	if cfg.Reconcile.ClearDelay, err = envDuration("SOURCER_CLEAR_DELAY", cfg.Reconcile.ClearDelay); err != nil {
		return err
	}
	if cfg.Persist.Workers, err = envInt("PERSIST_WORKERS", cfg.Persist.Workers); err != nil {
		return err
	}
	if cfg.Persist.MaxRetries, err = envInt("PERSIST_MAX_RETRIES", cfg.Persist.MaxRetries); err != nil {
		return err
	}
	if cfg.Persist.RateLimitRPS, err = envFloat("PERSIST_RATE_LIMIT_RPS", cfg.Persist.RateLimitRPS); err != nil {
		return err
	}
	if cfg.Gemini.Workers, err = envInt("GEMINI_WORKERS", cfg.Gemini.Workers); err != nil {
		return err
	}
	if cfg.Gemini.RateLimitRPS, err = envFloat("GEMINI_RATE_LIMIT_RPS", cfg.Gemini.RateLimitRPS); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if u := strings.TrimSpace(c.Backend.URL); u != "" {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("backend.url %q must be an absolute URL", u)
		}
	}
	if c.Backend.RequestTimeout <= 0 {
		return errors.New("backend.request_timeout must be > 0")
	}
	if c.Backend.StreamTimeout < 0 {
		return errors.New("backend.stream_timeout must be >= 0")
	}
	if c.Reconcile.ClearDelay < 0 {
		return errors.New("reconcile.clear_delay must be >= 0")
	}
	if c.Persist.Workers <= 0 {
		return errors.New("persist.workers must be > 0")
	}
	if c.Persist.MaxRetries < 0 {
		return errors.New("persist.max_retries must be >= 0")
	}
	if c.Gemini.Workers <= 0 {
		return errors.New("gemini.workers must be > 0")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}

// RequireBackend reports a missing backend URL. Only commands that talk to the backend need one.
func (c Config) RequireBackend() error {
	if strings.TrimSpace(c.Backend.URL) == "" {
		return errors.New("backend URL is required (backend.url or SOURCER_BACKEND_URL)")
	}
	return nil
}

// BackendToken returns the inline token, or the trimmed contents of the token file.
func (c Config) BackendToken() (string, error) {
	if t := strings.TrimSpace(c.Backend.Token); t != "" {
		return t, nil
	}
	path := strings.TrimSpace(c.Backend.TokenFile)
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return tok, nil
}

func envInt(name string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func envFloat(name string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", name, v, err)
	}
	return out, nil
}
