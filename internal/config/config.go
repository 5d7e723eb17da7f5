package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the environment of a campaign run. PROMINENCE_URL names the REST
// endpoint; the access token comes from PROMINENCE_TOKEN or the
// ~/.prominence/token file.
type Config struct {
	ProminenceURL   string        `env:"PROMINENCE_URL"`
	ProminenceToken string        `env:"PROMINENCE_TOKEN"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	WorkDir         string        `env:"WORK_DIR"`
	BatchSize       int           `env:"BATCH_SIZE" envDefault:"3"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
}

// ServerConfig is the environment of the local PROMINENCE-compatible server.
type ServerConfig struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"promlocal.db"`
	DataDir     string `env:"DATA_DIR" envDefault:"./promlocal"`
	AMQPURL     string `env:"AMQP_URL"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"4"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	OutputBucket      string `env:"OUTPUT_BUCKET" envDefault:"job-outputs"`
}

func Load() (Config, error) {
	loadDotEnv()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.ProminenceURL == "" {
		return Config{}, fmt.Errorf("PROMINENCE_URL must be set")
	}
	return cfg, nil
}

func LoadServer() (ServerConfig, error) {
	loadDotEnv()

	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, continuing with environment variables")
	}
}
