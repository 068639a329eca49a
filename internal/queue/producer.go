package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/buddywatch/internal/models"
)

const (
	AssetsStreamName  = "ASSETS"
	AssetsSubjectBase = "assets"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the ASSETS stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        AssetsStreamName,
		Subjects:    []string{AssetsSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Duplicates:  time.Minute,
		Description: "Video asset lifecycle events",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishAssetEvent publishes ev on assets.<action>. The message id makes
// redelivered publishes of the same event collapse inside the dedup window.
func (p *Producer) PublishAssetEvent(ctx context.Context, ev models.AssetEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal asset event: %w", err)
	}

	_, err = p.js.Publish(ctx, SubjectFor(ev.Type), payload,
		jetstream.WithMsgID(string(ev.Type)+":"+ev.AssetID.String()),
	)
	if err != nil {
		return fmt.Errorf("publish asset event: %w", err)
	}
	return nil
}

// SubjectFor maps "asset.created" to "assets.created".
func SubjectFor(t models.AssetEventType) string {
	action := string(t)
	if i := strings.LastIndexByte(action, '.'); i >= 0 {
		action = action[i+1:]
	}
	return AssetsSubjectBase + "." + action
}

func (p *Producer) Ping(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
