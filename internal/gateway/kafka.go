package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"github.com/Zyldzkie/gas-guard/internal/config"
	"github.com/Zyldzkie/gas-guard/internal/metrics"
)

// gatewayReading is the wire shape sensor gateways publish to kafka.
type gatewayReading struct {
	HardwareID string  `json:"hardware_id"`
	PPM        float64 `json:"ppm"`
}

// messageReader is the slice of kafka.Reader the bridge loop consumes.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Start consumes gateway-published readings from kafka and republishes
// each one onto the hardware feed's redis channel, where the live value
// subscribers pick it up. Disabled unless configured.
func Start(ctx context.Context, cfg *config.Manager, client *redis.Client, logger *slog.Logger) {
	current := cfg.Get().Gateway
	if !current.Enabled {
		if logger != nil {
			logger.Info("gateway bridge disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("gateway bridge enabled",
			"brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go runBridge(ctx, reader, client, cfg.Get().Feed.ChannelSuffix, logger)
}

func runBridge(ctx context.Context, reader messageReader, client *redis.Client, suffix string, logger *slog.Logger) {
	defer reader.Close()
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if logger != nil {
				logger.Warn("gateway read error", "err", err)
			}
			continue
		}
		var gr gatewayReading
		if err := json.Unmarshal(m.Value, &gr); err != nil {
			metrics.GatewayReadings.WithLabelValues("rejected").Inc()
			if logger != nil {
				logger.Warn("gateway message malformed", "err", err)
			}
			continue
		}
		gr.HardwareID = strings.TrimSpace(gr.HardwareID)
		if gr.HardwareID == "" || gr.PPM < 0 {
			metrics.GatewayReadings.WithLabelValues("rejected").Inc()
			continue
		}
		channel := gr.HardwareID + "/" + suffix
		payload := strconv.FormatFloat(gr.PPM, 'f', -1, 64)
		if err := client.Publish(ctx, channel, payload).Err(); err != nil {
			metrics.GatewayReadings.WithLabelValues("rejected").Inc()
			if logger != nil {
				logger.Warn("gateway publish failed", "channel", channel, "err", err)
			}
			continue
		}
		metrics.GatewayReadings.WithLabelValues("published").Inc()
	}
}
