package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vasapolrittideah/reminder-app/shared/logger"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"

	EnvProduction = "production"
)

// Config holds the reminder service configuration.
type Config struct {
	AppEnv      string `env:"APP_ENV"      envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"reminder-service"`

	StoreDriver   string `env:"STORE_DRIVER"   envDefault:"mongo"`
	MongoURI      string `env:"MONGO_URI"      envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"reminder_app"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	HTTPPort      int    `env:"HTTP_PORT"      envDefault:"8080"`
	GRPCPort      int    `env:"GRPC_PORT"      envDefault:"50051"`
	ConsulAddr    string `env:"CONSUL_ADDR"`
	AdvertiseHost string `env:"ADVERTISE_HOST" envDefault:"127.0.0.1"`

	JWTAudience      string `env:"JWT_AUDIENCE"       envDefault:"reminder-app"`
	JWTIssuer        string `env:"JWT_ISSUER"         envDefault:"reminder-app"`
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET"`
	JWTServiceSecret string `env:"JWT_SERVICE_SECRET"`

	DispatchInterval time.Duration `env:"DISPATCH_INTERVAL"    envDefault:"60s"`
	CycleTimeout     time.Duration `env:"CYCLE_TIMEOUT"        envDefault:"5m"`
	Concurrency      int           `env:"DISPATCH_CONCURRENCY" envDefault:"10"`
	SendTimeout      time.Duration `env:"SEND_TIMEOUT"         envDefault:"30s"`
	ReconcileTimeout time.Duration `env:"RECONCILE_TIMEOUT"    envDefault:"10s"`
	Timezone         string        `env:"REMINDER_TIMEZONE"    envDefault:"Local"`

	Log  logger.Config
	Mail mailer.Config
}

// Load parses the configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Production reports whether the service runs with production safeguards.
func (c *Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// Location returns the time zone reminder times are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("missing MONGO_URI environment variable")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("missing POSTGRES_DSN environment variable")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be positive")
	}
	if c.DispatchInterval <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}

	return c.Mail.Validate(c.Production())
}
