package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig layers defaults, the provider-loaded config and runtime
// overrides into one validated Config.
func ResolveConfig(
	ctx context.Context,
	provider ConfigProvider,
	resolver OptionsResolver,
	runtime Config,
) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	ingest := map[string]any{}
	if includeZero || cfg.Ingest.Workers > 0 {
		ingest["workers"] = cfg.Ingest.Workers
	}
	if includeZero || cfg.Ingest.QueueSize > 0 {
		ingest["queue_size"] = cfg.Ingest.QueueSize
	}
	if includeZero || cfg.Ingest.IdempotencyTTL > 0 {
		ingest["idempotency_ttl"] = cfg.Ingest.IdempotencyTTL
	}
	if includeZero || cfg.Ingest.MaxTags > 0 {
		ingest["max_tags"] = cfg.Ingest.MaxTags
	}
	if includeZero || cfg.Ingest.MinPhoneDigits > 0 {
		ingest["min_phone_digits"] = cfg.Ingest.MinPhoneDigits
	}
	if len(ingest) > 0 {
		layer["ingest"] = ingest
	}

	delivery := map[string]any{}
	if includeZero || cfg.Delivery.HTTPTimeout > 0 {
		delivery["http_timeout"] = cfg.Delivery.HTTPTimeout
	}
	if includeZero || cfg.Delivery.BatchSize > 0 {
		delivery["batch_size"] = cfg.Delivery.BatchSize
	}
	if includeZero || cfg.Delivery.Parallelism > 0 {
		delivery["parallelism"] = cfg.Delivery.Parallelism
	}
	if includeZero || cfg.Delivery.ResponseBodyCap > 0 {
		delivery["response_body_cap"] = cfg.Delivery.ResponseBodyCap
	}
	for header, value := range map[string]string{
		"signature_header":   cfg.Delivery.SignatureHeader,
		"timestamp_header":   cfg.Delivery.TimestampHeader,
		"event_header":       cfg.Delivery.EventHeader,
		"delivery_id_header": cfg.Delivery.DeliveryIDHeader,
	} {
		if includeZero || strings.TrimSpace(value) != "" {
			delivery[header] = value
		}
	}
	retry := map[string]any{}
	if includeZero || cfg.Delivery.Retry.MaxAttempts > 0 {
		retry["max_attempts"] = cfg.Delivery.Retry.MaxAttempts
	}
	if includeZero || cfg.Delivery.Retry.BackoffCeiling > 0 {
		retry["backoff_ceiling"] = cfg.Delivery.Retry.BackoffCeiling
	}
	if includeZero || cfg.Delivery.Retry.MaxExponent > 0 {
		retry["max_exponent"] = cfg.Delivery.Retry.MaxExponent
	}
	if includeZero || cfg.Delivery.Retry.JitterCeiling > 0 {
		retry["jitter_ceiling"] = cfg.Delivery.Retry.JitterCeiling
	}
	if len(retry) > 0 {
		delivery["retry"] = retry
	}
	if len(delivery) > 0 {
		layer["delivery"] = delivery
	}
	return layer
}

var _ RawConfigLoader = staticRawConfigLoader{}
