package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/buddywatch/internal/models"
)

type AssetEventHandler func(ctx context.Context, ev models.AssetEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeAssetEvents delivers new asset events to handler until ctx is done.
// Every API replica needs its own consumerName so each sees every event.
func (c *Consumer) ConsumeAssetEvents(ctx context.Context, consumerName string, handler AssetEventHandler) error {
	stream, err := c.js.Stream(ctx, AssetsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", AssetsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              consumerName,
		Durable:           consumerName,
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           10 * time.Second,
		MaxDeliver:        3,
		FilterSubject:     AssetsSubjectBase + ".>",
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				ev, err := DecodeAssetEvent(msg.Data())
				if err != nil {
					// poison message; redelivery cannot fix it
					slog.Error("decode asset event", "subject", msg.Subject(), "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, ev); err != nil {
					slog.Error("process asset event", "type", ev.Type, "asset_id", ev.AssetID, "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("asset event consumer started", "consumer", consumerName)
	return nil
}

// DecodeAssetEvent parses and sanity-checks a published event.
func DecodeAssetEvent(data []byte) (models.AssetEvent, error) {
	var ev models.AssetEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	switch ev.Type {
	case models.AssetCreated, models.AssetDeleted:
	default:
		return ev, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.OwnerID == "" {
		return ev, fmt.Errorf("event %s has no owner", ev.AssetID)
	}
	return ev, nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
