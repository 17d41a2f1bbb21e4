package persistence

import (
	"context"
	"database/sql"
	"time"
)

// PostgresIdempotencyChecker is the cold tier of command deduplication: a
// lookup against the durable event log for keys that have aged out of the
// in-memory LRU. Implements core.DBDeduper.
type PostgresIdempotencyChecker struct {
	db *sql.DB
}

func NewPostgresIdempotencyChecker(db *sql.DB) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{db: db}
}

// IsDuplicate checks whether a command's key already appears in the event
// log. Keys are unique across command types (UUIDs or structured keys with a
// type-specific suffix), so the lookup ignores commandType.
func (pic *PostgresIdempotencyChecker) IsDuplicate(commandType, idempotencyKey string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var exists int
	err := pic.db.QueryRowContext(ctx, `
		SELECT 1
		FROM event_log.events
		WHERE idempotency_key = $1
		LIMIT 1
	`, idempotencyKey).Scan(&exists)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
