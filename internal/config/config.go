package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Feed       FeedConfig       `json:"feed" yaml:"feed"`
	Thresholds ThresholdsConfig `json:"thresholds" yaml:"thresholds"`
	Gateway    GatewayConfig    `json:"gateway" yaml:"gateway"`
	Monitor    MonitorConfig    `json:"monitor" yaml:"monitor"`
	API        APIConfig        `json:"api" yaml:"api"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Alerts     AlertsConfig     `json:"alerts" yaml:"alerts"`
}

// FeedConfig describes the realtime value feed. Readings arrive on the
// pub/sub channel "<hardware_id>/<channel_suffix>".
type FeedConfig struct {
	RedisAddr          string        `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword      string        `json:"redis_password" yaml:"redis_password"`
	RedisDB            int           `json:"redis_db" yaml:"redis_db"`
	ChannelSuffix      string        `json:"channel_suffix" yaml:"channel_suffix"`
	ResubscribeBackoff time.Duration `json:"resubscribe_backoff" yaml:"resubscribe_backoff"`
}

// ThresholdsConfig carries the static fallback thresholds applied when a
// hardware feed has no operator-set values.
type ThresholdsConfig struct {
	WarningDefault   float64 `json:"warning_default" yaml:"warning_default"`
	DangerDefault    float64 `json:"danger_default" yaml:"danger_default"`
	WarningKeySuffix string  `json:"warning_key_suffix" yaml:"warning_key_suffix"`
	DangerKeySuffix  string  `json:"danger_key_suffix" yaml:"danger_key_suffix"`
}

// GatewayConfig controls the optional kafka bridge that republishes
// gateway-posted sensor readings onto the redis feed channels.
type GatewayConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type MonitorConfig struct {
	// DebounceWindow suppresses a repeat record of the same level for the
	// same identity inside the window. Zero disables suppression; every
	// qualifying reading then produces its own record.
	DebounceWindow time.Duration `json:"debounce_window" yaml:"debounce_window"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Feed: FeedConfig{
			RedisAddr:          "localhost:6379",
			ChannelSuffix:      "gas_value",
			ResubscribeBackoff: 2 * time.Second,
		},
		Thresholds: ThresholdsConfig{
			WarningDefault:   300,
			DangerDefault:    400,
			WarningKeySuffix: "warningThresh",
			DangerKeySuffix:  "dangerThresh",
		},
		Gateway: GatewayConfig{Enabled: false},
		Monitor: MonitorConfig{DebounceWindow: 0},
		API:     APIConfig{Enabled: true, Addr: ":8080"},
		Storage: StorageConfig{Driver: "sqlite", DSN: "file:gasguard.db?_pragma=busy_timeout(5000)"},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Feed.ChannelSuffix == "" {
		cfg.Feed.ChannelSuffix = "gas_value"
	}
	if cfg.Feed.ResubscribeBackoff <= 0 {
		cfg.Feed.ResubscribeBackoff = 2 * time.Second
	}
	if cfg.Thresholds.WarningDefault <= 0 {
		cfg.Thresholds.WarningDefault = 300
	}
	if cfg.Thresholds.DangerDefault <= 0 {
		cfg.Thresholds.DangerDefault = 400
	}
	if cfg.Thresholds.WarningKeySuffix == "" {
		cfg.Thresholds.WarningKeySuffix = "warningThresh"
	}
	if cfg.Thresholds.DangerKeySuffix == "" {
		cfg.Thresholds.DangerKeySuffix = "dangerThresh"
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.Feed.RedisAddr == "" {
		return errors.New("feed.redis_addr is required")
	}
	if cfg.Thresholds.WarningDefault >= cfg.Thresholds.DangerDefault {
		return fmt.Errorf("thresholds: warning_default %v must be below danger_default %v",
			cfg.Thresholds.WarningDefault, cfg.Thresholds.DangerDefault)
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Gateway.Enabled {
		if len(cfg.Gateway.Brokers) == 0 || cfg.Gateway.Topic == "" || cfg.Gateway.GroupID == "" {
			return errors.New("gateway requires brokers, topic, group_id")
		}
	}
	if cfg.Monitor.DebounceWindow < 0 {
		return errors.New("monitor.debounce_window must not be negative")
	}
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
