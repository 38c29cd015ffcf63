package config

import (
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-match-system/pkg/configparser"
)

// Config contains all configuration variables of the application
type (
	Config struct {
		ServiceName string `env:"SERVICE_NAME" default:"matching-service"`
		LogLevel    string `env:"LOG_LEVEL" default:"DEBUG"`

		Server   ServerConfig
		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Matching MatchingConfig
		Auth     AuthConfig
	}

	ServerConfig struct {
		Port string `env:"SERVER_PORT" default:"3002"`
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"matching_user"`
		Password string `env:"DATABASE_PASSWORD" default:"matching_pass"`
		Database string `env:"DATABASE_DATABASE" default:"matching_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	MatchingConfig struct {
		DriverResponseTimeout time.Duration `env:"MATCHING_DRIVER_RESPONSE_TIMEOUT" default:"30s"`
		BookingTimeout        time.Duration `env:"MATCHING_BOOKING_TIMEOUT" default:"300s"`
		MaxDistanceKm         float64       `env:"MATCHING_MAX_DISTANCE_KM" default:"0"`
		Priority              string        `env:"MATCHING_PRIORITY" default:"RECENT_ACTIVITY"`
	}

	AuthConfig struct {
		DriverTokenTTL time.Duration `env:"AUTH_DRIVER_TOKEN_TTL" default:"24h"`
		JWTSecret      string        `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
	}
)

// PoolSettings exposes the pgx pool tuning knobs.
func (c DatabaseConfig) PoolSettings() (int32, int32, time.Duration, time.Duration) {
	return c.MaxConns, c.MinConns, c.MaxConnLifetime, c.MaxConnIdleTime
}

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	// Loading enviromental variables and parsing to config struct.
	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}
