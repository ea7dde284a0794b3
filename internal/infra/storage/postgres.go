// Package storage - postgres.go
// PostgreSQL implementation of EventRepository for deployments that keep
// the audit ledger in a shared database instead of local SQLite.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresEventRepository implements EventRepository using PostgreSQL.
// The caller supplies a connected *sqlx.DB with the pgx or pq driver.
type PostgresEventRepository struct {
	db *sqlx.DB
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(db *sqlx.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

// EnsureSchema creates the event ledger table if missing.
func (r *PostgresEventRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS event_log (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL DEFAULT '',
			round INTEGER NOT NULL DEFAULT 0,
			phase TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			revealed_role TEXT NOT NULL DEFAULT '',
			revealed_type TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_event_log_game ON event_log(game_id);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Append inserts a new event into the immutable ledger.
func (r *PostgresEventRepository) Append(ctx context.Context, e EventRow) error {
	query := `
		INSERT INTO event_log (id, game_id, timestamp, event_type, actor_id, target_id, round, phase, message, revealed_role, revealed_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.GameID, e.Timestamp, e.EventType, e.ActorID, e.TargetID,
		e.Round, e.Phase, e.Message, e.RevealedRole, e.RevealedType,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// GetByGameID retrieves all events for a game in timeline order.
func (r *PostgresEventRepository) GetByGameID(ctx context.Context, gameID string) ([]EventRow, error) {
	var out []EventRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM event_log WHERE game_id = $1 ORDER BY timestamp ASC`, gameID)
	return out, err
}

// GetByRound retrieves a game's events for one round.
func (r *PostgresEventRepository) GetByRound(ctx context.Context, gameID string, round int) ([]EventRow, error) {
	var out []EventRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM event_log WHERE game_id = $1 AND round = $2 ORDER BY timestamp ASC`, gameID, round)
	return out, err
}

// GetByEventType retrieves all events of one type for a game.
func (r *PostgresEventRepository) GetByEventType(ctx context.Context, gameID string, eventType string) ([]EventRow, error) {
	var out []EventRow
	err := r.db.SelectContext(ctx, &out,
		`SELECT * FROM event_log WHERE game_id = $1 AND event_type = $2 ORDER BY timestamp ASC`, gameID, eventType)
	return out, err
}
