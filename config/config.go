package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the lumenpay-auth server configuration
type Config struct {
	ListenAddr string `yaml:"listen_addr" default:":9000" validate:"required"`
	LogLevel   string `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`

	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string `yaml:"trusted_proxies" validate:"dive,ip|cidr"`

	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Events  EventsConfig  `yaml:"events"`
	Stellar StellarConfig `yaml:"stellar"`
}

// AuthConfig tunes the challenge flow and session tokens
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" validate:"required,min=32"`
	Issuer          string        `yaml:"issuer" default:"lumenpay"`
	NonceTTL        time.Duration `yaml:"nonce_ttl" default:"10m" validate:"gt=0"`
	TokenTTL        time.Duration `yaml:"token_ttl" default:"168h" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m" validate:"gt=0"`
	CleanupToken    string        `yaml:"cleanup_token"`
	RatePerSecond   float64       `yaml:"rate_per_second" default:"5" validate:"gte=0"`
	RateBurst       int           `yaml:"rate_burst" default:"10" validate:"gte=0"`
}

// StoreConfig picks the nonce and user backends
type StoreConfig struct {
	// Nonces is "memory" or "redis"
	Nonces string `yaml:"nonces" default:"redis" validate:"oneof=memory redis"`
	// Users is "memory", "redis" or "postgres"
	Users       string `yaml:"users" default:"redis" validate:"oneof=memory redis postgres"`
	RedisURL    string `yaml:"redis_url" default:"redis://localhost:6379/0"`
	DatabaseURL string `yaml:"database_url"`
}

// EventsConfig controls auth event publishing
type EventsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// StellarConfig selects the network the relay talks to
type StellarConfig struct {
	Network    string `yaml:"network" default:"testnet" validate:"oneof=testnet public"`
	HorizonURL string `yaml:"horizon_url"`
	USDCIssuer string `yaml:"usdc_issuer" validate:"omitempty,len=56"`
}

// Load reads path (optional), applies defaults and environment overrides,
// then validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"LUMENPAY_JWT_SECRET":    &cfg.Auth.JWTSecret,
		"LUMENPAY_CLEANUP_TOKEN": &cfg.Auth.CleanupToken,
		"REDIS_URL":              &cfg.Store.RedisURL,
		"DATABASE_URL":           &cfg.Store.DatabaseURL,
	}
	for name, field := range overrides {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks field constraints and cross-field requirements
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Users == "postgres" && c.Store.DatabaseURL == "" {
		return errors.New("invalid config: store.database_url is required for postgres users")
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
