package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
// Nested keys use underscores, e.g. auth.domain -> CLOUDWISE_AUTH_DOMAIN.
const EnvPrefix = "CLOUDWISE"

// EnvironmentDevelopment enables verbose error messages and text logs.
const EnvironmentDevelopment = "development"

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public base URL of the API
	ServerURL string

	// Runtime environment; "development" exposes internal error messages
	Environment string

	// Logrus level name
	LogLevel string

	// Maximum database connection pool size
	MaxDBConnections int

	// Upper bound for a single database round-trip issued by the auth chain
	DBTimeout time.Duration

	// Largest JSON request body accepted by the generic body parser
	MaxJSONBodyBytes int64

	CORSAllowedOrigins []string

	Auth          AuthConfig
	Webhook       WebhookConfig
	Upload        UploadConfig
	Observability ObservabilityConfig
}

// AuthConfig describes the external identity provider whose tokens the API accepts.
// Tokens must be RS256 signed by a key published at https://{Domain}/.well-known/jwks.json,
// carry iss == https://{Domain}/ and include Audience in aud.
type AuthConfig struct {
	Domain   string
	Audience string

	// How long fetched signing keys are trusted before a refresh is attempted
	JWKSCacheTTL time.Duration

	// Maximum key set fetches per minute, shared by all requests
	JWKSRefetchPerMinute int

	// Timeout for one fetch attempt, and the number of attempts
	JWKSFetchTimeout  time.Duration
	JWKSFetchAttempts int

	// Clock skew tolerated on exp/nbf/iat
	Leeway time.Duration
}

// Issuer returns the expected iss claim.
func (c AuthConfig) Issuer() string {
	return "https://" + c.Domain + "/"
}

// JWKSURL returns the key set endpoint derived from the domain.
func (c AuthConfig) JWKSURL() string {
	return "https://" + c.Domain + "/.well-known/jwks.json"
}

// WebhookConfig configures inbound payment processor callbacks.
type WebhookConfig struct {
	StripeSecret    string
	Tolerance       time.Duration
	MaxBodyBytes    int64
	ReplayCacheSize int

	// When set, replay protection is shared through Redis instead of process memory
	RedisURL string
}

// UploadConfig bounds accepted file uploads.
type UploadConfig struct {
	MaxBytes     int64
	AllowedTypes []string
}

// ObservabilityConfig configures OpenTelemetry export. An empty endpoint disables it.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// Load reads configuration from the global viper instance: defaults, then any
// config file already read by the caller, then CLOUDWISE_ environment variables.
func Load() (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:        viper.GetString("database_url"),
		ServerAddr:         viper.GetString("server_addr"),
		ServerURL:          viper.GetString("server_url"),
		Environment:        strings.ToLower(viper.GetString("environment")),
		LogLevel:           viper.GetString("log_level"),
		MaxDBConnections:   viper.GetInt("max_db_connections"),
		DBTimeout:          viper.GetDuration("db_timeout"),
		MaxJSONBodyBytes:   viper.GetInt64("max_json_body_bytes"),
		CORSAllowedOrigins: stringList("cors_allowed_origins"),
		Auth: AuthConfig{
			Domain:               strings.TrimSuffix(viper.GetString("auth.domain"), "/"),
			Audience:             viper.GetString("auth.audience"),
			JWKSCacheTTL:         viper.GetDuration("auth.jwks_cache_ttl"),
			JWKSRefetchPerMinute: viper.GetInt("auth.jwks_refetch_per_minute"),
			JWKSFetchTimeout:     viper.GetDuration("auth.jwks_fetch_timeout"),
			JWKSFetchAttempts:    viper.GetInt("auth.jwks_fetch_attempts"),
			Leeway:               viper.GetDuration("auth.leeway"),
		},
		Webhook: WebhookConfig{
			StripeSecret:    viper.GetString("webhook.stripe_secret"),
			Tolerance:       viper.GetDuration("webhook.tolerance"),
			MaxBodyBytes:    viper.GetInt64("webhook.max_body_bytes"),
			ReplayCacheSize: viper.GetInt("webhook.replay_cache_size"),
			RedisURL:        viper.GetString("webhook.redis_url"),
		},
		Upload: UploadConfig{
			MaxBytes:     viper.GetInt64("upload.max_bytes"),
			AllowedTypes: stringList("upload.allowed_types"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   viper.GetString("otel.endpoint"),
			OTLPInsecure:   viper.GetBool("otel.insecure"),
			ServiceName:    viper.GetString("otel.service_name"),
			ServiceVersion: viper.GetString("otel.service_version"),
		},
	}
	cfg.Observability.Environment = cfg.Environment

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseOnly loads configuration for commands that only touch the database
// (migrations, user administration) and skips auth and webhook validation.
func LoadDatabaseOnly() (*Config, error) {
	setDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:      viper.GetString("database_url"),
		MaxDBConnections: viper.GetInt("max_db_connections"),
		DBTimeout:        viper.GetDuration("db_timeout"),
		LogLevel:         viper.GetString("log_level"),
		Environment:      strings.ToLower(viper.GetString("environment")),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (set %s_DATABASE_URL)", EnvPrefix)
	}
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server_addr", ":8080")
	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("environment", "production")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("max_db_connections", 25)
	viper.SetDefault("db_timeout", 5*time.Second)
	viper.SetDefault("max_json_body_bytes", 1<<20)
	viper.SetDefault("cors_allowed_origins", "http://localhost:3000")

	viper.SetDefault("auth.domain", "")
	viper.SetDefault("auth.audience", "")
	viper.SetDefault("auth.jwks_cache_ttl", 10*time.Minute)
	viper.SetDefault("auth.jwks_refetch_per_minute", 5)
	viper.SetDefault("auth.jwks_fetch_timeout", 5*time.Second)
	viper.SetDefault("auth.jwks_fetch_attempts", 3)
	viper.SetDefault("auth.leeway", 30*time.Second)

	viper.SetDefault("webhook.stripe_secret", "")
	viper.SetDefault("webhook.tolerance", 5*time.Minute)
	viper.SetDefault("webhook.max_body_bytes", 64<<10)
	viper.SetDefault("webhook.replay_cache_size", 10000)
	viper.SetDefault("webhook.redis_url", "")

	viper.SetDefault("upload.max_bytes", 5<<20)
	viper.SetDefault("upload.allowed_types", "image/png,image/jpeg,image/webp,application/pdf,text/csv")

	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)
	viper.SetDefault("otel.service_name", "cloudwise-api")
	viper.SetDefault("otel.service_version", "dev")
}

// stringList accepts both a YAML list and a comma-separated string.
func stringList(key string) []string {
	raw, ok := viper.Get(key).(string)
	if !ok {
		return viper.GetStringSlice(key)
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required (set %s_DATABASE_URL)", EnvPrefix)
	}
	if c.Auth.Domain == "" {
		return fmt.Errorf("auth.domain is required (set %s_AUTH_DOMAIN)", EnvPrefix)
	}
	if strings.Contains(c.Auth.Domain, "://") {
		return fmt.Errorf("auth.domain must be a bare host name, got %q", c.Auth.Domain)
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth.audience is required (set %s_AUTH_AUDIENCE)", EnvPrefix)
	}
	if c.Auth.JWKSRefetchPerMinute < 1 {
		return fmt.Errorf("auth.jwks_refetch_per_minute must be at least 1")
	}
	if c.Auth.JWKSFetchAttempts < 1 {
		return fmt.Errorf("auth.jwks_fetch_attempts must be at least 1")
	}
	if c.Auth.JWKSFetchTimeout <= 0 || c.DBTimeout <= 0 {
		return fmt.Errorf("auth.jwks_fetch_timeout and db_timeout must be positive")
	}
	if c.Webhook.StripeSecret == "" {
		return fmt.Errorf("webhook.stripe_secret is required (set %s_WEBHOOK_STRIPE_SECRET)", EnvPrefix)
	}
	if c.Webhook.Tolerance <= 0 {
		return fmt.Errorf("webhook.tolerance must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return fmt.Errorf("upload.allowed_types must list at least one MIME type")
	}
	switch c.Environment {
	case EnvironmentDevelopment, "production", "staging", "test":
	default:
		return fmt.Errorf("environment must be one of development, staging, production, test; got %q", c.Environment)
	}
	return nil
}
