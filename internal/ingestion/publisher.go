package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"unxcore/internal/core"
)

// OutboundPublisher publishes processed events to NATS for downstream
// consumers. Outbound events are published after persistence is confirmed.
// Subjects follow the pattern: unx.events.{event_type}.{market}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.CoreOutput
}

// wireEvent is the outbound JSON shape.
type wireEvent struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Market         string          `json:"market,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	StateHash      string          `json:"state_hash"`
	PrevHash       string          `json:"prev_hash"`
	TimestampMs    uint64          `json:"timestamp_ms"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.CoreOutput) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
				// Non-fatal: downstream consumers can query the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.CoreOutput) error {
	env := out.Envelope
	data, err := json.Marshal(wireEvent{
		Sequence:       env.Sequence,
		EventType:      env.Type.String(),
		IdempotencyKey: env.IdempotencyKey,
		Market:         env.Market,
		Payload:        env.Payload,
		StateHash:      hex.EncodeToString(env.StateHash[:]),
		PrevHash:       hex.EncodeToString(env.PrevHash[:]),
		TimestampMs:    env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("unx.events.%s", env.Type.String())
	if env.Market != "" {
		subject = fmt.Sprintf("%s.%s", subject, env.Market)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "UNX_EVENTS",
		Subjects:  []string{"unx.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Info().Msg("ensured outbound stream UNX_EVENTS")
	return nil
}
