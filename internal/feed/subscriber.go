package feed

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/metrics"
	"github.com/Zyldzkie/gas-guard/internal/model"
)

// ErrNoFeed is returned when a subscription is requested without a
// hardware feed id.
var ErrNoFeed = errors.New("feed: no hardware feed id")

// ErrAlreadySubscribed is returned when Start is called on a live
// subscription. Use Rebind to switch feeds.
var ErrAlreadySubscribed = errors.New("feed: already subscribed")

type State int32

const (
	StateUnbound State = iota
	StateSubscribing
	StateSubscribed
	StateRebinding
	StateUnsubscribed
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateRebinding:
		return "rebinding"
	case StateUnsubscribed:
		return "unsubscribed"
	default:
		return "unbound"
	}
}

// Handler receives one delivered reading. The subscriber calls it
// synchronously from its receive loop, so a handler runs to completion
// before the next reading is offered.
type Handler func(ctx context.Context, reading model.LiveReading)

// Subscriber maintains exactly one standing subscription to a hardware
// feed's value channel. Rebinding tears the old subscription down
// completely before the new one opens; teardown is idempotent and no
// callbacks fire after it returns.
type Subscriber struct {
	client  *redis.Client
	cfg     config.FeedConfig
	logger  *slog.Logger
	handler Handler

	mu         sync.Mutex
	state      atomic.Int32
	hardwareID string
	cancel     context.CancelFunc
	done       chan struct{}
	online     atomic.Bool
}

func NewSubscriber(client *redis.Client, cfg config.FeedConfig, logger *slog.Logger, handler Handler) *Subscriber {
	return &Subscriber{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		handler: handler,
	}
}

func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// Online reports feed connectivity for the presentation layer.
func (s *Subscriber) Online() bool {
	return s.online.Load()
}

func (s *Subscriber) HardwareID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardwareID
}

func (s *Subscriber) Start(ctx context.Context, hardwareID string) error {
	hardwareID = strings.TrimSpace(hardwareID)
	if hardwareID == "" {
		return ErrNoFeed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.State() {
	case StateSubscribing, StateSubscribed, StateRebinding:
		return ErrAlreadySubscribed
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.hardwareID = hardwareID
	s.cancel = cancel
	s.done = done
	s.state.Store(int32(StateSubscribing))
	go s.run(loopCtx, hardwareID, done)
	return nil
}

// Rebind switches the subscription to a new feed. The old receive loop
// is fully stopped before the new subscription opens, so no value from
// the old feed can reach the handler after Rebind returns.
func (s *Subscriber) Rebind(ctx context.Context, hardwareID string) error {
	hardwareID = strings.TrimSpace(hardwareID)
	if hardwareID == "" {
		return ErrNoFeed
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	if cancel != nil {
		s.state.Store(int32(StateRebinding))
		cancel()
	}
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.state.Store(int32(StateUnbound))
	return s.Start(ctx, hardwareID)
}

// Stop tears the subscription down. It is safe to call repeatedly and
// before Start; once it returns the handler will not be called again.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.online.Store(false)
	s.state.Store(int32(StateUnsubscribed))
}

func (s *Subscriber) run(ctx context.Context, hardwareID string, done chan struct{}) {
	defer close(done)
	channel := hardwareID + "/" + s.cfg.ChannelSuffix
	for {
		if ctx.Err() != nil {
			return
		}
		pubsub := s.client.Subscribe(ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			s.online.Store(false)
			if s.logger != nil {
				s.logger.Warn("feed subscribe failed", "channel", channel, "err", err)
			}
			if !BackoffSleep(ctx, s.cfg.ResubscribeBackoff) {
				return
			}
			continue
		}
		s.state.Store(int32(StateSubscribed))
		s.online.Store(true)
		if s.logger != nil {
			s.logger.Info("feed subscribed", "channel", channel)
		}
		s.receive(ctx, pubsub)
		_ = pubsub.Close()
		s.online.Store(false)
		if ctx.Err() != nil {
			return
		}
		s.state.Store(int32(StateSubscribing))
		metrics.FeedResubscribes.Inc()
		if s.logger != nil {
			s.logger.Warn("feed disconnected, resubscribing", "channel", channel)
		}
		if !BackoffSleep(ctx, s.cfg.ResubscribeBackoff) {
			return
		}
	}
}

func (s *Subscriber) receive(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			value, err := strconv.ParseFloat(strings.TrimSpace(msg.Payload), 64)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("feed delivered non-numeric value", "channel", msg.Channel, "payload", msg.Payload)
				}
				continue
			}
			reading := model.LiveReading{
				HardwareID: s.hardwareIDFromChannel(msg.Channel),
				PPM:        value,
				ReceivedAt: time.Now().UTC(),
			}
			if s.handler != nil {
				s.handler(ctx, reading)
			}
		}
	}
}

func (s *Subscriber) hardwareIDFromChannel(channel string) string {
	return strings.TrimSuffix(channel, "/"+s.cfg.ChannelSuffix)
}
