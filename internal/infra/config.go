package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"vigilo"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"vigilo"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"vigilo"`

	// Step-up challenges
	StepUpSecret string `env:"STEPUP_SECRET" envDefault:"change-me-in-production"`

	// API auth
	AuthSecret         string `env:"AUTH_SECRET" envDefault:"change-me-in-production"`
	AuthServiceExpiry  string `env:"AUTH_SERVICE_EXPIRY" envDefault:"24h"`
	AuthOperatorExpiry string `env:"AUTH_OPERATOR_EXPIRY" envDefault:"8h"`

	// Server
	APIPort   int `env:"API_PORT" envDefault:"3200"`
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Threat intelligence
	AbuseIPDBKey string `env:"ABUSEIPDB_API_KEY"`

	// Geolocation. When the database path is empty the ip-api.com fallback
	// resolver is used.
	GeoIPDatabasePath string `env:"GEOIP_DB_PATH"`

	// Background sweeps
	SweepInterval  string  `env:"SWEEP_INTERVAL" envDefault:"5m"`
	SweepThreshold float64 `env:"SWEEP_RISK_THRESHOLD" envDefault:"40"`
	SweepWorkers   int64   `env:"SWEEP_WORKERS" envDefault:"8"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	for name, secret := range map[string]string{
		"STEPUP_SECRET": c.StepUpSecret,
		"AUTH_SECRET":   c.AuthSecret,
	} {
		if secret == "change-me-in-production" {
			return fmt.Errorf("%s is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev", name)
		}
		if len(secret) < 32 {
			return fmt.Errorf("%s is too short (%d chars); minimum 32 characters required", name, len(secret))
		}
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
