package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"unxcore/internal/core"
	"unxcore/internal/observability"
)

// Worker drains the persist channel and batch-writes to Postgres. It runs
// independently from the deterministic core; the persist channel uses
// BLOCKING sends from the core, so if this worker falls behind the core
// stalls rather than lose an event.
type Worker struct {
	db           *sql.DB
	writer       *EventLogWriter
	inputChan    <-chan core.CoreOutput
	publishChan  chan<- core.CoreOutput
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

// NewWorker wires a persistence worker. publishChan may be nil; when set,
// outputs are forwarded to it after the flush commits, so downstream
// publication only ever sees durable events.
func NewWorker(
	db *sql.DB,
	inputChan <-chan core.CoreOutput,
	publishChan chan<- core.CoreOutput,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		db:           db,
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		publishChan:  publishChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the worker loop. Outputs are batched and flushed when the batch
// fills or the flush timeout expires. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	pending := make([]core.CoreOutput, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(pending) > 0 {
				// Shutdown flush runs on a background context so the
				// in-flight batch is not lost.
				if err := w.flush(context.Background(), pending); err != nil {
					log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				if len(pending) > 0 {
					if err := w.flush(context.Background(), pending); err != nil {
						log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			pending = append(pending, output)

			if len(pending) >= w.batchSize {
				w.flushWithRetry(ctx, pending)
				pending = pending[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(pending) > 0 {
				w.flushWithRetry(ctx, pending)
				pending = pending[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops
// events: it retries until the write succeeds or the context is cancelled,
// in which case one final attempt runs on a background context.
func (w *Worker) flushWithRetry(ctx context.Context, outputs []core.CoreOutput) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(outputs)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), outputs); err != nil {
					log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, outputs)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return
		}

		if w.metrics != nil {
			w.metrics.PersistRetry.Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, outputs []core.CoreOutput) error {
	start := time.Now()

	events := make([]EventRow, 0, len(outputs))
	journals := make([]JournalRow, 0, len(outputs)*4)
	commands := make([]CommandRow, 0, len(outputs))
	for _, out := range outputs {
		row, jrows, crow := RowsFromOutput(out)
		events = append(events, row)
		journals = append(journals, jrows...)
		if crow != nil {
			commands = append(commands, *crow)
		}
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return fmt.Errorf("write events: %w", err)
	}
	if err := w.writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_journals").Inc()
		}
		return fmt.Errorf("write journals: %w", err)
	}
	if err := w.writer.WriteCommandBatch(ctx, tx, commands); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_commands").Inc()
		}
		return fmt.Errorf("write commands: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistJournalsWritten.Add(float64(len(journals)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	// Events are durable now; hand them to the outbound publisher.
	// Non-blocking: a slow publisher must not stall persistence.
	if w.publishChan != nil {
		for _, out := range outputs {
			select {
			case w.publishChan <- out:
			default:
				if w.metrics != nil {
					w.metrics.PublishDrops.Inc()
				}
			}
		}
	}

	return nil
}
