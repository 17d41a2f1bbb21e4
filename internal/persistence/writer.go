package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"unxcore/internal/core"
)

// EventLogWriter writes envelopes and journal batches to Postgres using
// multi-row INSERT. A pgx CopyFrom port is the obvious upgrade if single-node
// throughput ever becomes the bottleneck.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is a row in event_log.events.
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	Market         string
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	TimestampMs    int64
	SourceSequence int64
}

// CommandRow is a row in event_log.commands: the marshaled inbound command
// that produced a run of events, keyed by the sequence of its first event.
// Replay feeds these back through the core after a snapshot restore.
type CommandRow struct {
	Sequence       int64
	CommandType    string
	IdempotencyKey string
	Payload        []byte
	TimestampMs    int64
}

// JournalRow is a row in event_log.journal.
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
	TimestampMs   int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowsFromOutput flattens one core output into storage rows. The journal
// batch and the originating command ride on the first envelope of the
// command, so later outputs produce an event row only.
func RowsFromOutput(out core.CoreOutput) (EventRow, []JournalRow, *CommandRow) {
	env := out.Envelope
	row := EventRow{
		Sequence:       env.Sequence,
		EventType:      env.Type.String(),
		IdempotencyKey: env.IdempotencyKey,
		Market:         env.Market,
		Payload:        env.Payload,
		StateHash:      append([]byte(nil), env.StateHash[:]...),
		PrevHash:       append([]byte(nil), env.PrevHash[:]...),
		TimestampMs:    int64(env.Timestamp),
		SourceSequence: env.SourceSequence,
	}

	var cmdRow *CommandRow
	if len(out.Command) > 0 {
		cmdRow = &CommandRow{
			Sequence:       env.Sequence,
			CommandType:    out.CommandType.String(),
			IdempotencyKey: env.IdempotencyKey,
			Payload:        out.Command,
			TimestampMs:    int64(env.Timestamp),
		}
	}

	if out.Batch == nil {
		return row, nil, cmdRow
	}

	journals := make([]JournalRow, 0, len(out.Batch.Journals))
	for _, j := range out.Batch.Journals {
		journals = append(journals, JournalRow{
			JournalID:     j.JournalID.String(),
			BatchID:       j.BatchID.String(),
			EventRef:      j.EventRef,
			Sequence:      env.Sequence,
			DebitAccount:  j.DebitAccount.AccountPath(),
			CreditAccount: j.CreditAccount.AccountPath(),
			AssetID:       uint16(j.AssetID),
			Amount:        int64(j.Amount),
			JournalType:   int32(j.JournalType),
			TimestampMs:   int64(j.Timestamp),
		})
	}
	return row, journals, cmdRow
}

// WriteEventBatch writes event rows inside the given transaction.
// ON CONFLICT DO NOTHING keeps replays idempotent.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, idempotency_key, market, payload, state_hash, prev_hash, timestamp_ms, source_sequence)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.Market,
			e.Payload, e.StateHash, e.PrevHash, e.TimestampMs, e.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteCommandBatch writes command rows inside the given transaction.
func (w *EventLogWriter) WriteCommandBatch(ctx context.Context, tx *sql.Tx, commands []CommandRow) error {
	if len(commands) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.commands
		(sequence, command_type, idempotency_key, payload, timestamp_ms)
		VALUES `

	values := make([]string, 0, len(commands))
	args := make([]interface{}, 0, len(commands)*5)

	for i, c := range commands {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, c.Sequence, c.CommandType, c.IdempotencyKey, c.Payload, c.TimestampMs)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LoadCommandsFrom streams the logged commands with sequence strictly greater
// than afterSequence, in order. Used for startup replay on top of a snapshot.
func (w *EventLogWriter) LoadCommandsFrom(ctx context.Context, afterSequence int64) ([]CommandRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT sequence, command_type, idempotency_key, payload, timestamp_ms
		FROM event_log.commands
		WHERE sequence > $1
		ORDER BY sequence ASC`, afterSequence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRow
	for rows.Next() {
		var c CommandRow
		if err := rows.Scan(&c.Sequence, &c.CommandType, &c.IdempotencyKey, &c.Payload, &c.TimestampMs); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// WriteJournalBatch writes journal rows inside the given transaction.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, tx *sql.Tx, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, asset_id, amount, journal_type, timestamp_ms)
		VALUES `

	values := make([]string, 0, len(journals))
	args := make([]interface{}, 0, len(journals)*10)

	for i, j := range journals {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.AssetID, j.Amount,
			j.JournalType, j.TimestampMs,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (journal_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
