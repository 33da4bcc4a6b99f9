package core

import (
	"fmt"
	"strings"
	"time"
)

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	BackoffCeiling time.Duration `koanf:"backoff_ceiling" mapstructure:"backoff_ceiling"`
	MaxExponent    int           `koanf:"max_exponent" mapstructure:"max_exponent"`
	JitterCeiling  time.Duration `koanf:"jitter_ceiling" mapstructure:"jitter_ceiling"`
}

type DeliveryConfig struct {
	HTTPTimeout      time.Duration `koanf:"http_timeout" mapstructure:"http_timeout"`
	BatchSize        int           `koanf:"batch_size" mapstructure:"batch_size"`
	Parallelism      int           `koanf:"parallelism" mapstructure:"parallelism"`
	ResponseBodyCap  int           `koanf:"response_body_cap" mapstructure:"response_body_cap"`
	Retry            RetryConfig   `koanf:"retry" mapstructure:"retry"`
	SignatureHeader  string        `koanf:"signature_header" mapstructure:"signature_header"`
	TimestampHeader  string        `koanf:"timestamp_header" mapstructure:"timestamp_header"`
	EventHeader      string        `koanf:"event_header" mapstructure:"event_header"`
	DeliveryIDHeader string        `koanf:"delivery_id_header" mapstructure:"delivery_id_header"`
}

type IngestConfig struct {
	Workers        int           `koanf:"workers" mapstructure:"workers"`
	QueueSize      int           `koanf:"queue_size" mapstructure:"queue_size"`
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl" mapstructure:"idempotency_ttl"`
	MaxTags        int           `koanf:"max_tags" mapstructure:"max_tags"`
	MinPhoneDigits int           `koanf:"min_phone_digits" mapstructure:"min_phone_digits"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Ingest      IngestConfig   `koanf:"ingest" mapstructure:"ingest"`
	Delivery    DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "repolead",
		Ingest: IngestConfig{
			Workers:        4,
			QueueSize:      256,
			IdempotencyTTL: 24 * time.Hour,
			MaxTags:        30,
			MinPhoneDigits: 8,
		},
		Delivery: DeliveryConfig{
			HTTPTimeout:     10 * time.Second,
			BatchSize:       50,
			Parallelism:     8,
			ResponseBodyCap: 4096,
			Retry: RetryConfig{
				MaxAttempts:    50,
				BackoffCeiling: time.Hour,
				MaxExponent:    12,
				JitterCeiling:  3 * time.Second,
			},
			SignatureHeader:  "X-RepoLead-Signature",
			TimestampHeader:  "X-RepoLead-Timestamp",
			EventHeader:      "X-RepoLead-Event",
			DeliveryIDHeader: "X-RepoLead-Delivery-Id",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("core: ingest.workers must not be negative")
	}
	if c.Delivery.Retry.MaxAttempts < 0 {
		return fmt.Errorf("core: delivery.retry.max_attempts must not be negative")
	}
	if c.Delivery.HTTPTimeout < 0 {
		return fmt.Errorf("core: delivery.http_timeout must not be negative")
	}
	return nil
}
