// Package config loads service settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	ConvertTimeout    time.Duration `yaml:"convert_timeout"` // whole aggregation incl. fetches
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`   // per URL

	// Store is "memory" or a SQLite path ("sqlite:" prefix optional).
	Store string `yaml:"store"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Admin      AdminConfig     `yaml:"admin"`
	SessionTTL time.Duration   `yaml:"session_ttl"`
	Login      LoginConfig     `yaml:"login"`
	Aggregate  AggregateConfig `yaml:"aggregate"`

	// SubWorkerURL is an external converter. Empty selects the built-in
	// builders.
	SubWorkerURL string `yaml:"sub_worker_url"`
	// PublicURL is the externally visible origin used to build share URLs
	// handed to the external converter. Empty derives it from the request.
	PublicURL          string `yaml:"public_url"`
	DefaultTemplateURL string `yaml:"default_template_url"`
	SubscriberURL      string `yaml:"subscriber_url"`
	QuickSubURL        string `yaml:"quick_sub_url"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoginConfig throttles credential checks per client IP.
type LoginConfig struct {
	Burst int           `yaml:"burst"`
	Every time.Duration `yaml:"every"`
}

type AggregateConfig struct {
	MaxDepth    int `yaml:"max_depth"`
	MaxSources  int `yaml:"max_sources"`
	Concurrency int `yaml:"concurrency"`
}

func Default() Config {
	return Config{
		Listen:            "127.0.0.1:8787",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ConvertTimeout:    60 * time.Second,
		FetchTimeout:      15 * time.Second,
		Store:             "memory",
		LogLevel:          "info",
		Admin:             AdminConfig{Username: "admin", Password: "admin"},
		SessionTTL:        24 * time.Hour,
		Login:             LoginConfig{Burst: 5, Every: 12 * time.Second},
		Aggregate:         AggregateConfig{MaxDepth: 16, MaxSources: 256, Concurrency: 8},
		SubscriberURL:     "https://bestipsub.8669.xyz/",
		QuickSubURL:       "https://resubname.8669.xyz/",
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any)
// and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode overlays the YAML document b on cfg. Unknown keys are rejected.
func Decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides cfg with the deployment variables. getenv is usually
// os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("ADMIN_USERNAME"); v != "" {
		cfg.Admin.Username = v
	}
	if v := getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := getenv("SUB_WORKER_URL"); v != "" {
		cfg.SubWorkerURL = strings.TrimRight(v, "/")
	}
	if v := getenv("SUBHUB_STORE"); v != "" {
		cfg.Store = v
	}
	if v := getenv("SUBHUB_PUBLIC_URL"); v != "" {
		cfg.PublicURL = strings.TrimRight(v, "/")
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen is empty"))
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		errs = append(errs, errors.New("admin username and password must be set"))
	}
	if c.ConvertTimeout < 0 || c.FetchTimeout < 0 || c.SessionTTL < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Aggregate.MaxDepth < 0 || c.Aggregate.MaxSources < 0 || c.Aggregate.Concurrency < 0 {
		errs = append(errs, errors.New("aggregate limits must not be negative"))
	}
	if c.Login.Burst < 1 || c.Login.Every <= 0 {
		errs = append(errs, errors.New("login throttle needs burst >= 1 and every > 0"))
	}
	return errors.Join(errs...)
}
