package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable Config reads.
const EnvPrefix = "DEPENDR"

// Config is the report endpoint configuration, read from the environment.
type Config struct {
	// Address the HTTP server listens on.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Bucket the rendered graphs are uploaded to.
	S3BucketName string `envconfig:"S3_BUCKET_NAME" required:"true"`

	// Key prefix for uploaded graphs.
	S3Prefix string `envconfig:"S3_PREFIX"`

	// How long the returned image URL stays valid.
	PresignTTL time.Duration `envconfig:"PRESIGN_TTL" default:"1h"`

	// Days of traffic each report covers, ending today.
	LookbackDays int `envconfig:"LOOKBACK_DAYS" default:"30"`

	// Maximum number of flows a report query returns.
	QueryLimit int `envconfig:"QUERY_LIMIT" default:"1000"`

	// Skip TLS verification when talking to the PCE.
	PCEInsecure bool `envconfig:"PCE_INSECURE"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig reads Config from DEPENDR_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "loading server configuration")
	}
	if cfg.S3BucketName == "" {
		return nil, errors.Errorf("%s_S3_BUCKET_NAME is required", EnvPrefix)
	}
	if cfg.LookbackDays < 1 {
		return nil, errors.Errorf("%s_LOOKBACK_DAYS must be at least 1, got %d", EnvPrefix, cfg.LookbackDays)
	}
	if cfg.QueryLimit < 1 {
		return nil, errors.Errorf("%s_QUERY_LIMIT must be at least 1, got %d", EnvPrefix, cfg.QueryLimit)
	}
	return cfg, nil
}
