package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLiteGameRepository implements GameRepository over sqlx/SQLite.
type SQLiteGameRepository struct {
	db *sqlx.DB
}

func NewSQLiteGameRepository(db *sqlx.DB) *SQLiteGameRepository {
	return &SQLiteGameRepository{db: db}
}

func (r *SQLiteGameRepository) UpsertGame(ctx context.Context, g GameRow) error {
	query := `
		INSERT INTO games (id, scope, creator_id, status, current_round, game_number, max_players, speed, phase_ends_at, winner_team, created_at, started_at, ended_at)
		VALUES (:id, :scope, :creator_id, :status, :current_round, :game_number, :max_players, :speed, :phase_ends_at, :winner_team, :created_at, :started_at, :ended_at)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status,
			current_round=excluded.current_round,
			phase_ends_at=excluded.phase_ends_at,
			winner_team=excluded.winner_team,
			started_at=excluded.started_at,
			ended_at=excluded.ended_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

func (r *SQLiteGameRepository) GetGame(ctx context.Context, gameID string) (*GameRow, error) {
	var g GameRow
	err := r.db.GetContext(ctx, &g, `SELECT * FROM games WHERE id = ?`, gameID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *SQLiteGameRepository) DeleteGame(ctx context.Context, gameID string) error {
	// Cancellation voids the whole object graph.
	statements := []string{
		`DELETE FROM night_actions WHERE game_id = ?`,
		`DELETE FROM day_votes WHERE game_id = ?`,
		`DELETE FROM chat_messages WHERE game_id = ?`,
		`DELETE FROM players WHERE game_id = ?`,
		`DELETE FROM games WHERE id = ?`,
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, gameID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to delete game: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteGameRepository) UpsertPlayer(ctx context.Context, p PlayerRow) error {
	query := `
		INSERT INTO players (id, game_id, resident_id, name, role, team, kind, is_alive, eliminated_round, joined_at)
		VALUES (:id, :game_id, :resident_id, :name, :role, :team, :kind, :is_alive, :eliminated_round, :joined_at)
		ON CONFLICT(id) DO UPDATE SET
			role=excluded.role,
			team=excluded.team,
			is_alive=excluded.is_alive,
			eliminated_round=excluded.eliminated_round
	`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

func (r *SQLiteGameRepository) DeletePlayer(ctx context.Context, playerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, playerID)
	return err
}

func (r *SQLiteGameRepository) GetPlayers(ctx context.Context, gameID string) ([]PlayerRow, error) {
	var out []PlayerRow
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM players WHERE game_id = ? ORDER BY joined_at ASC`, gameID)
	return out, err
}

// UpsertAction is idempotent per (game, round, actor): a resubmission
// simply replaces the pending row.
func (r *SQLiteGameRepository) UpsertAction(ctx context.Context, a ActionRow) error {
	query := `
		INSERT INTO night_actions (game_id, round, actor_id, action_type, target_id, result, submitted_at)
		VALUES (:game_id, :round, :actor_id, :action_type, :target_id, :result, :submitted_at)
		ON CONFLICT(game_id, round, actor_id) DO UPDATE SET
			action_type=excluded.action_type,
			target_id=excluded.target_id,
			result=excluded.result,
			submitted_at=excluded.submitted_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to upsert action: %w", err)
	}
	return nil
}

// UpsertVote is idempotent per (game, round, voter).
func (r *SQLiteGameRepository) UpsertVote(ctx context.Context, v VoteRow) error {
	query := `
		INSERT INTO day_votes (game_id, round, voter_id, target_id, reason, submitted_at)
		VALUES (:game_id, :round, :voter_id, :target_id, :reason, :submitted_at)
		ON CONFLICT(game_id, round, voter_id) DO UPDATE SET
			target_id=excluded.target_id,
			reason=excluded.reason,
			submitted_at=excluded.submitted_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (r *SQLiteGameRepository) SaveChat(ctx context.Context, m ChatRow) error {
	query := `
		INSERT INTO chat_messages (id, game_id, sender_id, sender_name, message, created_at)
		VALUES (:id, :game_id, :sender_id, :sender_name, :message, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	return nil
}

func (r *SQLiteGameRepository) GetChat(ctx context.Context, gameID string) ([]ChatRow, error) {
	var out []ChatRow
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM chat_messages WHERE game_id = ? ORDER BY created_at ASC`, gameID)
	return out, err
}

// ---------------------------------------------------------
// SQLiteEventRepository
// ---------------------------------------------------------

type SQLiteEventRepository struct {
	db *sqlx.DB
}

func NewSQLiteEventRepository(db *sqlx.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, e EventRow) error {
	query := `
		INSERT INTO events (id, game_id, timestamp, event_type, actor_id, target_id, round, phase, message, revealed_role, revealed_type)
		VALUES (:id, :game_id, :timestamp, :event_type, :actor_id, :target_id, :round, :phase, :message, :revealed_role, :revealed_type)
	`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) GetByGameID(ctx context.Context, gameID string) ([]EventRow, error) {
	var out []EventRow
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM events WHERE game_id = ? ORDER BY timestamp ASC`, gameID)
	return out, err
}

func (r *SQLiteEventRepository) GetByRound(ctx context.Context, gameID string, round int) ([]EventRow, error) {
	var out []EventRow
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM events WHERE game_id = ? AND round = ? ORDER BY timestamp ASC`, gameID, round)
	return out, err
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, gameID string, eventType string) ([]EventRow, error) {
	var out []EventRow
	err := r.db.SelectContext(ctx, &out, `SELECT * FROM events WHERE game_id = ? AND event_type = ? ORDER BY timestamp ASC`, gameID, eventType)
	return out, err
}
