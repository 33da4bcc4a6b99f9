package core

import (
	"context"
	"testing"
	"time"
)

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.Delivery.Retry.MaxAttempts != 50 {
		t.Fatalf("expected retry ceiling 50, got %d", cfg.Delivery.Retry.MaxAttempts)
	}
	if cfg.Delivery.SignatureHeader != "X-RepoLead-Signature" {
		t.Fatalf("unexpected signature header %q", cfg.Delivery.SignatureHeader)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "  "
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected blank service name to fail")
	}

	cfg = DefaultConfig()
	cfg.Ingest.Workers = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative workers to fail")
	}

	cfg = DefaultConfig()
	cfg.Delivery.Retry.MaxAttempts = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative retry ceiling to fail")
	}
}

func TestCfgxConfigProvider_LayersOverDefaults(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "repolead-staging",
		"ingest": map[string]any{
			"workers": 2,
		},
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "repolead-staging" {
		t.Fatalf("expected loaded service name, got %q", cfg.ServiceName)
	}
	if cfg.Ingest.Workers != 2 {
		t.Fatalf("expected loaded worker count, got %d", cfg.Ingest.Workers)
	}
	if cfg.Delivery.Retry.MaxAttempts != 50 {
		t.Fatalf("expected default retry ceiling to survive, got %d", cfg.Delivery.Retry.MaxAttempts)
	}
}

func TestResolveConfig_LayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"delivery": map[string]any{
			"batch_size": 10,
			"retry": map[string]any{
				"max_attempts": 5,
			},
		},
	}})

	runtime := Config{
		Delivery: DeliveryConfig{
			BatchSize: 25,
		},
	}

	cfg, err := ResolveConfig(context.Background(), provider, nil, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ServiceName != "from-config" {
		t.Fatalf("expected config layer service name, got %q", cfg.ServiceName)
	}
	if cfg.Delivery.BatchSize != 25 {
		t.Fatalf("expected runtime batch size to win, got %d", cfg.Delivery.BatchSize)
	}
	if cfg.Delivery.Retry.MaxAttempts != 5 {
		t.Fatalf("expected config layer retry ceiling, got %d", cfg.Delivery.Retry.MaxAttempts)
	}
	if cfg.Ingest.QueueSize != 256 {
		t.Fatalf("expected default queue size to survive, got %d", cfg.Ingest.QueueSize)
	}
	if cfg.Delivery.HTTPTimeout != 10*time.Second {
		t.Fatalf("expected default http timeout to survive, got %s", cfg.Delivery.HTTPTimeout)
	}
}

func TestResolveConfig_DefaultsWhenNothingProvided(t *testing.T) {
	cfg, err := ResolveConfig(context.Background(), nil, nil, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.ServiceName != "repolead" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
}
