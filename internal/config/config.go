package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary     Primary           `koanf:"primary"`
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
	Events      EventsConfig      `koanf:"events"`
	Auth        AuthConfig        `koanf:"auth"`
	Logger      LoggerConfig      `koanf:"logger"`
	Worker      WorkerConfig      `koanf:"worker"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// IdempotencyConfig controls the at-most-once POST cache. Both expiries
// default to 3600 minutes; a record goes away when either elapses.
type IdempotencyConfig struct {
	Backend             string        `koanf:"backend" validate:"required,oneof=memory postgres"`
	AccessExpiryMinutes int           `koanf:"access_expiry_minutes"`
	ModifyExpiryMinutes int           `koanf:"modify_expiry_minutes"`
	PendingWait         time.Duration `koanf:"pending_wait"`
}

const defaultExpiryMinutes = 3600

func (c IdempotencyConfig) AccessExpiry() time.Duration {
	minutes := c.AccessExpiryMinutes
	if minutes <= 0 {
		minutes = defaultExpiryMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (c IdempotencyConfig) ModifyExpiry() time.Duration {
	minutes := c.ModifyExpiryMinutes
	if minutes <= 0 {
		minutes = defaultExpiryMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (c IdempotencyConfig) Wait() time.Duration {
	if c.PendingWait <= 0 {
		return 10 * time.Second
	}
	return c.PendingWait
}

type EventsConfig struct {
	NatsURL string `koanf:"nats_url"`
}

type AuthConfig struct {
	TokenSecret string `koanf:"token_secret"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

type WorkerConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
}

// NewLogger builds the process logger from the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
