// Package config loads and validates application configuration from YAML files,
// an optional .env file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Webhook environment variables read by the built-in forms.
const (
	BookingWebhookEnv = "MAKE_BOOKING_WEBHOOK_URL"
	ContactWebhookEnv = "MAKE_CONTACT_WEBHOOK_URL"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig          `yaml:"server"`
	Site          SiteConfig            `yaml:"site"`
	Forms         map[string]FormConfig `yaml:"forms"`
	Definitions   DefinitionsConfig     `yaml:"definitions"`
	Instances     InstancesConfig       `yaml:"instances"`
	Idempotency   IdempotencyConfig     `yaml:"idempotency"`
	Audit         AuditConfig           `yaml:"audit"`
	Admin         AdminConfig           `yaml:"admin"`
	Observability ObservabilityConfig   `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// SiteConfig holds the business contact details returned with the form
// listing.
type SiteConfig struct {
	Name            string `yaml:"name" json:"name"`
	Phone           string `yaml:"phone" json:"phone"`
	Email           string `yaml:"email" json:"email"`
	WhatsAppNumber  string `yaml:"whatsapp_number" json:"-"`
	WhatsAppMessage string `yaml:"whatsapp_message" json:"-"`
}

// WhatsAppURL returns the click-to-chat link, or "" when no number is set.
func (s SiteConfig) WhatsAppURL() string {
	if s.WhatsAppNumber == "" {
		return ""
	}
	u := "https://wa.me/" + s.WhatsAppNumber
	if s.WhatsAppMessage != "" {
		u += "?text=" + url.QueryEscape(s.WhatsAppMessage)
	}
	return u
}

// FormConfig binds a form to its delivery endpoint.
type FormConfig struct {
	WebhookURL    string        `yaml:"webhook_url"`
	WebhookURLEnv string        `yaml:"webhook_url_env"`
	Timeout       time.Duration `yaml:"timeout"`
}

// DefinitionsConfig describes where to find form definition YAML files.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
}

// InstancesConfig describes form instance lifetime settings.
type InstancesConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	ReapInterval time.Duration `yaml:"reap_interval"`
}

// IdempotencyConfig describes idempotency store settings.
type IdempotencyConfig struct {
	Enabled bool                   `yaml:"enabled"`
	Store   IdempotencyStoreConfig `yaml:"store"`
}

// IdempotencyStoreConfig describes idempotency persistence settings.
type IdempotencyStoreConfig struct {
	Driver     string        `yaml:"driver"`
	AddrEnv    string        `yaml:"addr_env"`
	DB         int           `yaml:"db"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// AuditConfig describes delivery audit settings.
type AuditConfig struct {
	Driver   string `yaml:"driver"`
	DSNEnv   string `yaml:"dsn_env"`
	Capacity int    `yaml:"capacity"`
}

// AdminConfig describes operator authentication.
type AdminConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretEnv string `yaml:"secret_env"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    64 << 10,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type",
					"X-Correlation-Id", "X-Idempotency-Key"},
				MaxAge: 86400,
			},
		},
		Site: SiteConfig{
			Name:            "Xtreme Fabrix Solutions",
			Phone:           "+27 72 036 6449",
			Email:           "xtremefabrix@gmail.com",
			WhatsAppNumber:  "27720366449",
			WhatsAppMessage: "Hello! I'd like to inquire about your automotive upholstery services.",
		},
		Forms: map[string]FormConfig{
			"booking":     {WebhookURLEnv: BookingWebhookEnv},
			"testimonial": {WebhookURLEnv: BookingWebhookEnv},
			"contact":     {WebhookURLEnv: ContactWebhookEnv},
		},
		Instances: InstancesConfig{
			TTL:          30 * time.Minute,
			ReapInterval: time.Minute,
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			Store: IdempotencyStoreConfig{
				Driver:     "memory",
				AddrEnv:    "FORMRELAY_REDIS_ADDR",
				DefaultTTL: 24 * time.Hour,
			},
		},
		Audit: AuditConfig{
			Driver:   "memory",
			DSNEnv:   "FORMRELAY_AUDIT_DSN",
			Capacity: 1000,
		},
		Admin: AdminConfig{
			SecretEnv: "FORMRELAY_ADMIN_SECRET",
			Issuer:    "formrelay",
			Audience:  "formrelay-admin",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, loads envFile into the process environment
// when it exists, applies environment variable overrides, and validates the
// result. An empty path skips the YAML step and starts from Defaults.
func Load(path, envFile string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		restoreFormDefaults(cfg)
	}

	if envFile != "" {
		// Variables already present in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "server.max_body_bytes must be positive")
	}
	if c.Instances.TTL <= 0 {
		errs = append(errs, "instances.ttl must be positive")
	}
	if c.Instances.ReapInterval <= 0 {
		errs = append(errs, "instances.reap_interval must be positive")
	}

	for _, id := range c.FormIDs() {
		fc := c.Forms[id]
		if fc.Timeout < 0 {
			errs = append(errs, fmt.Sprintf("forms.%s.timeout must not be negative", id))
		}
		if fc.WebhookURL != "" {
			if u, err := url.Parse(fc.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				errs = append(errs, fmt.Sprintf("forms.%s.webhook_url must be an http(s) URL", id))
			}
		}
	}

	switch c.Idempotency.Store.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("idempotency.store.driver %q is not supported", c.Idempotency.Store.Driver))
	}
	if c.Idempotency.Store.Driver == "redis" && c.Idempotency.Store.AddrEnv == "" {
		errs = append(errs, "idempotency.store.addr_env is required for the redis driver")
	}

	switch c.Audit.Driver {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("audit.driver %q is not supported", c.Audit.Driver))
	}
	if c.Audit.Driver == "postgres" && c.Audit.DSNEnv == "" {
		errs = append(errs, "audit.dsn_env is required for the postgres driver")
	}

	if c.Admin.Enabled && c.Admin.SecretEnv == "" {
		errs = append(errs, "admin.secret_env is required when admin is enabled")
	}

	switch c.Observability.Tracing.Exporter {
	case "otlp", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("observability.tracing.exporter %q is not supported", c.Observability.Tracing.Exporter))
	}
	if r := c.Observability.Tracing.SamplingRate; r < 0 || r > 1 {
		errs = append(errs, "observability.tracing.sampling_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// FormIDs returns the configured form IDs in sorted order.
func (c *Config) FormIDs() []string {
	ids := make([]string, 0, len(c.Forms))
	for id := range c.Forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveWebhookURL returns the delivery URL for a form: the explicit
// webhook_url when set, otherwise the value of webhook_url_env. An empty
// result means the form has no endpoint.
func (c *Config) ResolveWebhookURL(formID string) string {
	fc, ok := c.Forms[formID]
	if !ok {
		return ""
	}
	if fc.WebhookURL != "" {
		return fc.WebhookURL
	}
	if fc.WebhookURLEnv != "" {
		return strings.TrimSpace(os.Getenv(fc.WebhookURLEnv))
	}
	return ""
}

// AdminSecret returns the HS256 secret for operator tokens.
func (c *Config) AdminSecret() []byte {
	if c.Admin.SecretEnv == "" {
		return nil
	}
	return []byte(os.Getenv(c.Admin.SecretEnv))
}

// restoreFormDefaults puts back the default webhook variable of a built-in
// form whose YAML entry names no endpoint at all.
func restoreFormDefaults(cfg *Config) {
	if cfg.Forms == nil {
		cfg.Forms = make(map[string]FormConfig)
	}
	for id, def := range Defaults().Forms {
		fc, ok := cfg.Forms[id]
		if !ok {
			cfg.Forms[id] = def
			continue
		}
		if fc.WebhookURL == "" && fc.WebhookURLEnv == "" {
			fc.WebhookURLEnv = def.WebhookURLEnv
			cfg.Forms[id] = fc
		}
	}
}

// applyEnvOverrides reads FORMRELAY_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMRELAY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FORMRELAY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("FORMRELAY_IDEMPOTENCY_DRIVER"); v != "" {
		cfg.Idempotency.Store.Driver = v
	}
	if v := os.Getenv("FORMRELAY_AUDIT_DRIVER"); v != "" {
		cfg.Audit.Driver = v
	}
	if v := os.Getenv("FORMRELAY_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("FORMRELAY_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("FORMRELAY_CORS_ALLOWED_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.CORS.AllowedOrigins = origins
	}
}
