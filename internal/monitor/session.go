package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/Zyldzkie/gas-guard/internal/alerts"
	"github.com/Zyldzkie/gas-guard/internal/classify"
	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/feed"
	"github.com/Zyldzkie/gas-guard/internal/metrics"
	"github.com/Zyldzkie/gas-guard/internal/model"
	"github.com/Zyldzkie/gas-guard/internal/thresholds"
)

// ErrNoHardwareID means the identity has a profile but no hardware feed
// bound to it yet. Monitoring cannot start until the user sets one.
var ErrNoHardwareID = errors.New("monitor: no hardware id bound")

// BindingResolver resolves an identity to its hardware binding.
type BindingResolver interface {
	Resolve(ctx context.Context, identity string) (model.HardwareBinding, error)
}

// Session runs the alerting pipeline for one signed-in identity: one
// standing feed subscription whose readings are classified against fresh
// thresholds and, when qualifying, persisted as alert records. The feed
// subscriber delivers readings synchronously, so each reading's
// classify-decide-persist pass completes before the next one starts.
type Session struct {
	identity   string
	resolver   BindingResolver
	thresholds thresholds.Provider
	writer     *alerts.Writer
	policy     *Policy
	subscriber *feed.Subscriber
	logger     *slog.Logger

	mu        sync.Mutex
	binding   model.HardwareBinding
	current   model.LiveReading
	level     model.AlertLevel
	hasCur    bool
	started   bool
}

type Deps struct {
	Resolver   BindingResolver
	Thresholds thresholds.Provider
	Writer     *alerts.Writer
	FeedClient *redis.Client
	FeedConfig config.FeedConfig
	Monitor    config.MonitorConfig
	Logger     *slog.Logger
}

func NewSession(identity string, deps Deps) *Session {
	s := &Session{
		identity:   identity,
		resolver:   deps.Resolver,
		thresholds: deps.Thresholds,
		writer:     deps.Writer,
		policy:     NewPolicy(deps.Monitor.DebounceWindow),
		logger:     deps.Logger,
	}
	s.subscriber = feed.NewSubscriber(deps.FeedClient, deps.FeedConfig, deps.Logger, s.handleReading)
	return s
}

func (s *Session) Identity() string {
	return s.identity
}

// Start resolves the binding and opens the feed subscription. A missing
// profile or an unset hardware id fails fast; there is nothing to retry
// until the user completes registration.
func (s *Session) Start(ctx context.Context) error {
	binding, err := s.resolver.Resolve(ctx, s.identity)
	if err != nil {
		return err
	}
	if binding.HardwareID == "" {
		return ErrNoHardwareID
	}
	s.mu.Lock()
	s.binding = binding
	s.mu.Unlock()
	if err := s.subscriber.Start(ctx, binding.HardwareID); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.started {
		s.started = true
		metrics.SessionsActive.Inc()
	}
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Info("monitoring started", "identity", s.identity, "hardware_id", binding.HardwareID)
	}
	return nil
}

// Rebind re-resolves the binding after the user edited their hardware
// id and replaces the subscription. The old subscription is torn down
// completely before the new one opens.
func (s *Session) Rebind(ctx context.Context) error {
	binding, err := s.resolver.Resolve(ctx, s.identity)
	if err != nil {
		return err
	}
	if binding.HardwareID == "" {
		s.Stop()
		return ErrNoHardwareID
	}
	s.mu.Lock()
	s.binding = binding
	s.mu.Unlock()
	if err := s.subscriber.Rebind(ctx, binding.HardwareID); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("monitoring rebound", "identity", s.identity, "hardware_id", binding.HardwareID)
	}
	return nil
}

// Stop tears the session down. Idempotent; once it returns no further
// readings are processed.
func (s *Session) Stop() {
	s.subscriber.Stop()
	s.mu.Lock()
	if s.started {
		s.started = false
		metrics.SessionsActive.Dec()
	}
	s.mu.Unlock()
}

// UpdateConfig applies a reloaded config to the running session.
// Currently only the debounce window is live-tunable; feed and storage
// settings need a restart.
func (s *Session) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if s.policy.Debounce() != cfg.Monitor.DebounceWindow {
		s.policy.SetDebounce(cfg.Monitor.DebounceWindow)
		if s.logger != nil {
			s.logger.Info("debounce window updated", "identity", s.identity, "window", cfg.Monitor.DebounceWindow)
		}
	}
}

// Online reports feed connectivity for the presentation layer.
func (s *Session) Online() bool {
	return s.subscriber.Online()
}

func (s *Session) FeedState() feed.State {
	return s.subscriber.State()
}

// Current returns the most recently classified reading, if any.
func (s *Session) Current() (model.LiveReading, model.AlertLevel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.level, s.hasCur
}

// handleReading runs the full pipeline for one delivered value. Called
// synchronously from the subscriber's receive loop.
func (s *Session) handleReading(ctx context.Context, reading model.LiveReading) {
	th, err := s.thresholds.Current(ctx, reading.HardwareID)
	if err != nil {
		// No decision without thresholds; the next reading retries
		// independently. Never classify against fabricated values.
		metrics.ReadingsSkipped.WithLabelValues("threshold_fault").Inc()
		if s.logger != nil {
			s.logger.Warn("threshold read failed, skipping reading",
				"identity", s.identity, "hardware_id", reading.HardwareID, "err", err)
		}
		return
	}
	level := classify.Level(reading.PPM, th)
	metrics.ReadingsProcessed.WithLabelValues(string(level)).Inc()

	s.mu.Lock()
	s.current = reading
	s.level = level
	s.hasCur = true
	mobile := s.binding.MobileNumber
	s.mu.Unlock()

	if !s.policy.ShouldEmit(s.identity, level, reading.ReceivedAt) {
		if level != model.LevelSafe {
			metrics.ReadingsSkipped.WithLabelValues("debounced").Inc()
		}
		return
	}

	record := model.AlertRecord{
		UserEmail:    s.identity,
		MobileNumber: mobile,
		Level:        level,
		PPM:          reading.PPM,
		Datetime:     reading.ReceivedAt,
		Color:        classify.Color(level),
	}
	if _, err := s.writer.Append(ctx, record); err != nil {
		// The alert for this reading is lost; there is no retry queue.
		metrics.AlertWriteFailures.Inc()
		if s.logger != nil {
			s.logger.Error("alert append failed",
				"identity", s.identity, "level", level, "ppm", reading.PPM, "err", err)
		}
		return
	}
	metrics.AlertsEmitted.WithLabelValues(string(level)).Inc()
}
