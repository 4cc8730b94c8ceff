package thresholds

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/model"
)

// Provider resolves the thresholds in effect for a hardware feed.
type Provider interface {
	Current(ctx context.Context, hardwareID string) (model.ThresholdConfig, error)
}

// RedisProvider reads operator-set thresholds from the feed's namespace
// ("<hardwareID>/warningThresh", "<hardwareID>/dangerThresh"). Every call
// is a fresh point read so an operator change takes effect on the next
// reading. Missing keys fall back to the configured defaults; transient
// I/O errors are returned as-is and must never be replaced by defaults.
type RedisProvider struct {
	client *redis.Client
	cfg    config.ThresholdsConfig
}

func NewRedisProvider(client *redis.Client, cfg config.ThresholdsConfig) *RedisProvider {
	return &RedisProvider{client: client, cfg: cfg}
}

func (p *RedisProvider) Current(ctx context.Context, hardwareID string) (model.ThresholdConfig, error) {
	out := model.ThresholdConfig{
		Warning: p.cfg.WarningDefault,
		Danger:  p.cfg.DangerDefault,
	}
	warning, ok, err := p.readValue(ctx, hardwareID+"/"+p.cfg.WarningKeySuffix)
	if err != nil {
		return model.ThresholdConfig{}, err
	}
	if ok {
		out.Warning = warning
	}
	danger, ok, err := p.readValue(ctx, hardwareID+"/"+p.cfg.DangerKeySuffix)
	if err != nil {
		return model.ThresholdConfig{}, err
	}
	if ok {
		out.Danger = danger
	}
	return out, nil
}

func (p *RedisProvider) readValue(ctx context.Context, key string) (float64, bool, error) {
	raw, err := p.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("thresholds: read %s: %w", key, err)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("thresholds: bad value at %s: %w", key, err)
	}
	return value, true, nil
}

// Static always returns the same thresholds. Used in tests and as a
// fallback when no threshold store is configured.
type Static struct {
	Config model.ThresholdConfig
}

func (s Static) Current(ctx context.Context, hardwareID string) (model.ThresholdConfig, error) {
	return s.Config, nil
}
