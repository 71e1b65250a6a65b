package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables. Per-run knobs (resume, dry-run,
// sampling, delays) live on the command line instead.
type Config struct {
	APIKey  string        `envconfig:"API_KEY"`
	BaseURL string        `envconfig:"BASE_URL" default:"https://androzoo.uni.lu/api/download"`
	Timeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"5m"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	LedgerPath string `envconfig:"LEDGER_PATH" default:"fetches.db"`
	WebhookURL string `envconfig:"WEBHOOK_URL"`
}

// LoadConfig reads LOGLEAKS_* environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("logleaks", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}
