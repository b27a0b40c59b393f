package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AppAPIHost    string        `env:"APP_API_HOST,required,notEmpty"`
	AppAPITimeout time.Duration `env:"APP_API_TIMEOUT" envDefault:"5s"`

	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTokenTTL time.Duration `env:"JWT_TOKEN_TTL" envDefault:"60m"`

	// Empty disables the debug endpoints entirely.
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s"`
	InactivityThreshold time.Duration `env:"INACTIVITY_THRESHOLD" envDefault:"60s"`
	ResultPostInterval  time.Duration `env:"RESULT_POST_INTERVAL" envDefault:"30s"`
	ForceCloseGrace     time.Duration `env:"FORCE_CLOSE_GRACE" envDefault:"5s"`
	DeferRecycleWindow  time.Duration `env:"DEFER_RECYCLE_WINDOW" envDefault:"30s"`

	EnergyCostPerMinute int `env:"ENERGY_COST_PER_MINUTE" envDefault:"10"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
