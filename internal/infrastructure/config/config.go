package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo   MongoConfig
	Redis   RedisConfig
	Billing BillingConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=timesheet_billing"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// BillingConfig carries the workflow policy knobs. The threshold defaults
// mirror the standard approval matrix; override per deployment as the
// organisation's limits change.
type BillingConfig struct {
	PaymentTermsDays int     `env:"BILLING_PAYMENT_TERMS_DAYS, default=30"`
	ManagerLimit     float64 `env:"BILLING_MANAGER_LIMIT,      default=10000"`
	ManagementLimit  float64 `env:"BILLING_MANAGEMENT_LIMIT,   default=25000"`
	BoardLimit       float64 `env:"BILLING_BOARD_LIMIT,        default=100000"`
	RateCacheTTLSecs int     `env:"BILLING_RATE_CACHE_TTL,     default=300"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
