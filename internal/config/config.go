package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"story-engine/internal/logger"
	"story-engine/pkg/database"
)

// SecretsDir is where Docker secrets are mounted.
var SecretsDir = "/run/secrets"

// Config holds the whole engine process configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Save     SaveConfig
	Redis    RedisConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Encoding   string `envconfig:"LOG_ENCODING" default:"json"`
	OutputPath string `envconfig:"LOG_OUTPUT_PATH"`
}

// SaveConfig selects the save slot backend.
type SaveConfig struct {
	Backend  string `envconfig:"SAVE_BACKEND" default:"file"`
	Dir      string `envconfig:"SAVE_DIR" default:"./data/saves"`
	MaxSlots int    `envconfig:"SAVE_MAX_SLOTS" default:"10"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Password string `ignored:"true"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"story_engine"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"5"`
	Password string `ignored:"true"`
}

// RabbitMQConfig enables the event publisher when URL is set.
type RabbitMQConfig struct {
	URL   string `envconfig:"RABBITMQ_URL"`
	Queue string `envconfig:"ENGINE_EVENTS_QUEUE" default:"story_engine_events"`
}

type EngineConfig struct {
	StoriesDir   string        `envconfig:"STORIES_DIR"`
	PlayTimeTick time.Duration `envconfig:"PLAYTIME_TICK" default:"1s"`
}

// Database returns the connection settings for pkg/database.
func (c DatabaseConfig) Database() database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.Name,
		SSLMode:  c.SSLMode,
		MaxConns: c.MaxConns,
	}
}

// Load reads the configuration from the environment and secret files.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var err error
	if cfg.Redis.Password, err = secretOrEnv("redis_password", "REDIS_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = secretOrEnv("db_password", "DB_PASSWORD"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Save.MaxSlots <= 0 {
		return fmt.Errorf("SAVE_MAX_SLOTS must be positive, got %d", c.Save.MaxSlots)
	}
	if c.Engine.PlayTimeTick <= 0 {
		return fmt.Errorf("PLAYTIME_TICK must be positive, got %s", c.Engine.PlayTimeTick)
	}
	return nil
}

// ReadSecret reads a Docker secret by name.
func ReadSecret(name string) (string, error) {
	path := filepath.Join(SecretsDir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

// secretOrEnv prefers the secret file and falls back to the environment
// variable when the file does not exist.
func secretOrEnv(secret, env string) (string, error) {
	value, err := ReadSecret(secret)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	return os.Getenv(env), nil
}
