package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite opens the local SQLite database and creates the schemas for
// games, players, actions, votes, chat and the immutable event log.
func InitSQLite(dbPath string) (*sqlx.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sqlx.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			status TEXT NOT NULL,
			current_round INTEGER NOT NULL DEFAULT 0,
			game_number INTEGER NOT NULL,
			max_players INTEGER NOT NULL,
			speed TEXT NOT NULL,
			phase_ends_at DATETIME,
			winner_team TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			ended_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			resident_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			team TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			is_alive BOOLEAN NOT NULL DEFAULT 1,
			eliminated_round INTEGER NOT NULL DEFAULT 0,
			joined_at DATETIME NOT NULL,
			FOREIGN KEY (game_id) REFERENCES games(id)
		);`,
		`CREATE TABLE IF NOT EXISTS night_actions (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			actor_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			target_id TEXT NOT NULL,
			result TEXT NOT NULL DEFAULT '',
			submitted_at DATETIME NOT NULL,
			PRIMARY KEY (game_id, round, actor_id),
			FOREIGN KEY (game_id) REFERENCES games(id)
		);`,
		`CREATE TABLE IF NOT EXISTS day_votes (
			game_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			voter_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			submitted_at DATETIME NOT NULL,
			PRIMARY KEY (game_id, round, voter_id),
			FOREIGN KEY (game_id) REFERENCES games(id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			sender_name TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (game_id) REFERENCES games(id)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			target_id TEXT NOT NULL DEFAULT '',
			round INTEGER NOT NULL DEFAULT 0,
			phase TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			revealed_role TEXT NOT NULL DEFAULT '',
			revealed_type TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (game_id) REFERENCES games(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_players_game_id ON players(game_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_game_id ON events(game_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_round ON events(game_id, round);`,
		`CREATE INDEX IF NOT EXISTS idx_votes_round ON day_votes(game_id, round);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
