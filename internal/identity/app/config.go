package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config is the service's environment-driven configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR, default=:8080"`

	// DatabasePath is the SQLite database file. ":memory:" is accepted for
	// local experimentation but loses everything on restart.
	DatabasePath string `env:"DATABASE_PATH, default=identity.db"`

	// SigningKeyPath is the Ed25519 PEM file for session signing. Generated
	// on first start when absent.
	SigningKeyPath string `env:"SIGNING_KEY_PATH, default=secrets/session.pem"`
	SigningKeyID   string `env:"SIGNING_KEY_ID, default=primary"`

	// PepperPath is the password pepper file. Generated on first start when
	// absent. Losing it invalidates every stored password hash.
	PepperPath string `env:"PEPPER_PATH, default=secrets/pepper"`

	Issuer     string        `env:"TOKEN_ISSUER, default=identity"`
	SessionTTL time.Duration `env:"SESSION_TTL, default=4h"`

	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL, default=1h"`

	Env       string `env:"ENV, default=dev"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogFormat string `env:"LOG_FORMAT, default=json"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}
