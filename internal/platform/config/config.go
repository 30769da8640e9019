package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultRateLimitDefault = 120
	defaultRateLimitWebhook = 60
	defaultGatewayTimeout   = 10 * time.Second
	defaultPaymentCurrency  = "BRL"
	defaultOrderTopic       = "order-status-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Firestore  FirestoreConfig
	PubSub     PubSubConfig
	Catalog    CatalogConfig
	Payments   PaymentsConfig
	Security   SecurityConfig
	RateLimits RateLimitConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the topic carrying order status events.
type PubSubConfig struct {
	ProjectID  string
	OrderTopic string
}

// CatalogConfig points at the product catalog microservice.
type CatalogConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PaymentsConfig points at the payment provider service.
type PaymentsConfig struct {
	BaseURL         string
	APIKey          string
	NotificationURL string
	Currency        string
	Timeout         time.Duration
}

// SecurityConfig groups authentication settings.
type SecurityConfig struct {
	JWTSecret      string
	JWTIssuer      string
	WebhookAPIKey  string
	AllowAnonymous bool
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	DefaultPerMinute int
	WebhookBurst     int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// and environment variables.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:  stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderTopic: stringWithDefault(lookup, "API_PUBSUB_ORDER_TOPIC", defaultOrderTopic),
		},
		Catalog: CatalogConfig{
			BaseURL: stringWithDefault(lookup, "API_CATALOG_BASE_URL", ""),
			APIKey:  stringWithDefault(lookup, "API_CATALOG_API_KEY", ""),
			Timeout: durationWithDefault(lookup, "API_CATALOG_TIMEOUT", defaultGatewayTimeout),
		},
		Payments: PaymentsConfig{
			BaseURL:         stringWithDefault(lookup, "API_PAYMENTS_BASE_URL", ""),
			APIKey:          stringWithDefault(lookup, "API_PAYMENTS_API_KEY", ""),
			NotificationURL: stringWithDefault(lookup, "API_PAYMENTS_NOTIFICATION_URL", ""),
			Currency:        stringWithDefault(lookup, "API_PAYMENTS_CURRENCY", defaultPaymentCurrency),
			Timeout:         durationWithDefault(lookup, "API_PAYMENTS_TIMEOUT", defaultGatewayTimeout),
		},
		Security: SecurityConfig{
			JWTSecret:      stringWithDefault(lookup, "API_SECURITY_JWT_SECRET", ""),
			JWTIssuer:      stringWithDefault(lookup, "API_SECURITY_JWT_ISSUER", ""),
			WebhookAPIKey:  stringWithDefault(lookup, "API_SECURITY_WEBHOOK_API_KEY", ""),
			AllowAnonymous: boolWithDefault(lookup, "API_SECURITY_ALLOW_ANONYMOUS", true),
		},
		RateLimits: RateLimitConfig{
			DefaultPerMinute: intWithDefault(lookup, "API_RATELIMIT_DEFAULT_PER_MIN", defaultRateLimitDefault),
			WebhookBurst:     intWithDefault(lookup, "API_RATELIMIT_WEBHOOK_BURST", defaultRateLimitWebhook),
		},
	}

	// PubSub project defaults to the Firestore project when unspecified.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.RateLimits.DefaultPerMinute <= 0 {
		missing = append(missing, "RateLimits.DefaultPerMinute")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
