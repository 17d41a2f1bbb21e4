package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds commands
// into the deterministic core via the commandChan. JetStream is the primary
// high-throughput ingestion surface; each command type has its own subject
// so producers scale independently.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	consumers   []jetstream.ConsumeContext
}

// RawCommand is the received-but-untyped command from NATS, ready for the
// shell to validate and convert into a typed event.Command before sending to
// the core.
type RawCommand struct {
	Subject    string
	Data       []byte
	ReceivedAt time.Time
	AckFunc    func() // ACK after the core has durably processed the command
	NakFunc    func() // NAK on failure (will be redelivered)
}

// SubjectConfig maps a NATS subject to a command type.
type SubjectConfig struct {
	Subject      string
	CommandType  string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject layout under unx.cmd.>.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "unx.cmd.fill.>", CommandType: "RecordFill", ConsumerName: "core-fills", StreamName: "UNX_FILLS"},
		{Subject: "unx.cmd.position.open.>", CommandType: "OpenPosition", ConsumerName: "core-pos-open", StreamName: "UNX_POSITIONS"},
		{Subject: "unx.cmd.position.close.>", CommandType: "ClosePosition", ConsumerName: "core-pos-close", StreamName: "UNX_POSITIONS"},
		{Subject: "unx.cmd.funding.refresh.>", CommandType: "RefreshFunding", ConsumerName: "core-funding-refresh", StreamName: "UNX_FUNDING"},
		{Subject: "unx.cmd.funding.apply.>", CommandType: "ApplyFunding", ConsumerName: "core-funding-apply", StreamName: "UNX_FUNDING"},
		{Subject: "unx.cmd.liquidation.>", CommandType: "LiquidatePosition", ConsumerName: "core-liquidation", StreamName: "UNX_LIQUIDATION"},
		{Subject: "unx.cmd.settlement.market.>", CommandType: "SettleMarket", ConsumerName: "core-settle-market", StreamName: "UNX_SETTLEMENT"},
		{Subject: "unx.cmd.settlement.queue.>", CommandType: "QueueSettlement", ConsumerName: "core-settle-queue", StreamName: "UNX_SETTLEMENT"},
		{Subject: "unx.cmd.settlement.process.>", CommandType: "ProcessSettlements", ConsumerName: "core-settle-process", StreamName: "UNX_SETTLEMENT"},
		{Subject: "unx.cmd.settlement.position.>", CommandType: "SettlePosition", ConsumerName: "core-settle-position", StreamName: "UNX_SETTLEMENT"},
		{Subject: "unx.cmd.rewards.award.>", CommandType: "AwardPoints", ConsumerName: "core-rewards-award", StreamName: "UNX_REWARDS"},
		{Subject: "unx.cmd.rewards.claim.>", CommandType: "ClaimRewards", ConsumerName: "core-rewards-claim", StreamName: "UNX_REWARDS"},
		{Subject: "unx.cmd.admin.list.>", CommandType: "ListMarket", ConsumerName: "core-admin-list", StreamName: "UNX_ADMIN"},
		{Subject: "unx.cmd.admin.update.>", CommandType: "AdminUpdate", ConsumerName: "core-admin-update", StreamName: "UNX_ADMIN"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:    msg.Subject(),
				Data:       msg.Data(),
				ReceivedAt: time.Now(),
				AckFunc:    func() { msg.Ack() },
				NakFunc:    func() { msg.Nak() },
			}

			select {
			case ns.commandChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{Name: "UNX_FILLS", Subjects: []string{"unx.cmd.fill.>"}},
		{Name: "UNX_POSITIONS", Subjects: []string{"unx.cmd.position.>"}},
		{Name: "UNX_FUNDING", Subjects: []string{"unx.cmd.funding.>"}},
		{Name: "UNX_LIQUIDATION", Subjects: []string{"unx.cmd.liquidation.>"}},
		{Name: "UNX_SETTLEMENT", Subjects: []string{"unx.cmd.settlement.>"}},
		{Name: "UNX_REWARDS", Subjects: []string{"unx.cmd.rewards.>"}},
		{Name: "UNX_ADMIN", Subjects: []string{"unx.cmd.admin.>"}},
	}

	for _, cfg := range streams {
		cfg.Storage = jetstream.FileStorage
		cfg.Retention = jetstream.LimitsPolicy
		cfg.MaxAge = 72 * time.Hour
		cfg.Replicas = 1
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
