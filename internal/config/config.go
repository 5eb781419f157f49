package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/akave-ai/nbstreamer/internal/tenant"
)

// EnvPrefix is the prefix of every environment variable the service reads.
const EnvPrefix = "NB_"

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Graylog       GraylogConfig        `koanf:"graylog" validate:"required"`
	Tenants       TenantsConfig        `koanf:"tenants"`
	Auth          AuthConfig           `koanf:"auth"`
	Database      DatabaseConfig       `koanf:"database"`
	RateLimit     RateLimitConfig      `koanf:"ratelimit"`
	Archive       ArchiveConfig        `koanf:"archive"`
	Observability *ObservabilityConfig `koanf:"observability" validate:"required"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required,oneof=development production test"`
}

type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port" validate:"required,min=1,max=65535"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout        time.Duration `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"`
	TrustProxyHeaders  bool          `koanf:"trust_proxy_headers"`
	BodyLimit          string        `koanf:"body_limit"`
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type GraylogConfig struct {
	Host        string        `koanf:"host" validate:"required"`
	Port        int           `koanf:"port" validate:"required,min=1,max=65535"`
	Protocol    string        `koanf:"protocol" validate:"required,oneof=udp tcp"`
	Timeout     time.Duration `koanf:"timeout" validate:"required"`
	Compression bool          `koanf:"compression"`
	TCPMode     string        `koanf:"tcp_mode" validate:"required,oneof=per_call persistent"`
}

type TenantsConfig struct {
	List               []string `koanf:"list" validate:"dive,tenant"`
	File               string   `koanf:"file"`
	RequirePath        bool     `koanf:"require_path"`
	Expose             bool     `koanf:"expose"`
	AllowLegacy        bool     `koanf:"allow_legacy"`
	LegacyEnforceMatch bool     `koanf:"legacy_enforce_match"`
}

type AuthConfig struct {
	Type        string `koanf:"type" validate:"required,oneof=none bearer basic header jwt"`
	Token       string `koanf:"token" validate:"required_if=Type bearer"`
	Username    string `koanf:"username" validate:"required_if=Type basic"`
	Password    string `koanf:"password" validate:"required_if=Type basic"`
	HeaderName  string `koanf:"header_name" validate:"required_if=Type header"`
	HeaderValue string `koanf:"header_value" validate:"required_if=Type header"`
	JWTSecret   string `koanf:"jwt_secret" validate:"required_if=Type jwt"`
}

// DatabaseConfig enables the persistent tenant registry when URL is set.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns" validate:"min=0"`
}

// RateLimitConfig enables per-tenant ingest limits when RedisAddr is set.
type RateLimitConfig struct {
	RedisAddr     string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"min=0"`
	Limit         int           `koanf:"limit" validate:"min=0"`
	Window        time.Duration `koanf:"window"`
}

// ArchiveConfig enables the S3-compatible archive of forwarded messages when Bucket is set.
type ArchiveConfig struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	BatchSize int    `koanf:"batch_size" validate:"min=0"`
	Prefix    string `koanf:"prefix"`
}

// Default returns the configuration used for every key the environment leaves unset.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "production"},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			TrustProxyHeaders: true,
			BodyLimit:         "1M",
		},
		Graylog: GraylogConfig{
			Host:        "localhost",
			Port:        12201,
			Protocol:    "udp",
			Timeout:     10 * time.Second,
			Compression: true,
			TCPMode:     "per_call",
		},
		Tenants: TenantsConfig{
			RequirePath:        true,
			AllowLegacy:        true,
			LegacyEnforceMatch: true,
		},
		Auth:     AuthConfig{Type: "none"},
		Database: DatabaseConfig{MaxConns: 4},
		RateLimit: RateLimitConfig{
			Limit:  600,
			Window: time.Minute,
		},
		Archive: ArchiveConfig{
			Region:    "us-east-1",
			BatchSize: 500,
			Prefix:    "gelf/",
		},
		Observability: DefaultObservabilityConfig(),
	}
}

// envKey maps NB_GRAYLOG_TCP_MODE to graylog.tcp_mode. The first underscore
// after the prefix separates section from key. NB_TENANTS is the tenant list.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if key == "tenants" {
		return "tenants.list"
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// Load reads an optional .env file, then NB_* environment variables on top of Default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Observability == nil {
		cfg.Observability = DefaultObservabilityConfig()
	}
	cfg.Observability.ServiceName = ServiceName
	cfg.Observability.Environment = cfg.Primary.Env

	for i, t := range cfg.Tenants.List {
		cfg.Tenants.List[i] = tenant.Normalize(t)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := tenant.RegisterValidation(validate); err != nil {
		return fmt.Errorf("register tenant validation: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Primary.Env == "development"
}
