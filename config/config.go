package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr       string        `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"address the HTTP API listens on"`
	PostgresURL    string        `long:"postgres-url" env:"POSTGRES_URL" description:"Postgres connection string"`
	RedisAddr      string        `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
	GatewayAddr    string        `long:"gateway-addr" env:"GATEWAY_ADDR" description:"spreadsheets gateway address, sales sheet is disabled when empty"`
	JaegerEndpoint string        `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint, traces are not exported when empty"`
	JWTSecret      string        `long:"jwt-secret" env:"JWT_SECRET" description:"HMAC secret of access tokens"`
	Timezone       string        `long:"timezone" env:"TIMEZONE" default:"UTC" description:"timezone exhibition dates and hours are interpreted in"`
	LockTimeout    time.Duration `long:"lock-timeout" env:"LOCK_TIMEOUT" default:"2s" description:"how long a transaction waits for a row lock"`
	BookingRetries uint64        `long:"booking-retries" env:"BOOKING_RETRIES" default:"3" description:"retries of operations that lost a lock race"`
	LogLevel       string        `long:"log-level" env:"LOG_LEVEL" default:"info" description:"logrus log level"`
}

// Load reads args and the environment. Variables from an optional .env file
// are loaded first and never override the ones already set.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("could not load .env: %w", err)
	}

	var cfg Config
	if _, err := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash).ParseArgs(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", c.LockTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}
