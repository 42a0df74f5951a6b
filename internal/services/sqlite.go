package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hubpsp-backend/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS platform_user_states (
	user_id     TEXT PRIMARY KEY,
	state_json  TEXT NOT NULL,
	soft_tokens INTEGER NOT NULL,
	hard_tokens INTEGER NOT NULL,
	level       INTEGER NOT NULL,
	saved_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS movements (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	user_id       TEXT NOT NULL,
	amount        INTEGER NOT NULL,
	token_kind    TEXT NOT NULL,
	category      TEXT NOT NULL,
	reason        TEXT NOT NULL,
	balance_after INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_movements_user_seq ON movements(user_id, seq);
`

// SQLiteStore persists snapshots and the movement journal in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLiteStore opens the database and applies the schema. ":memory:" gives a
// private in-process database, used by tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveUserState(ctx context.Context, state *models.PlatformUserState) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("%w: user id is required", models.ErrInvalidInput)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO platform_user_states (user_id, state_json, soft_tokens, hard_tokens, level, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   state_json = excluded.state_json,
		   soft_tokens = excluded.soft_tokens,
		   hard_tokens = excluded.hard_tokens,
		   level = excluded.level,
		   saved_at = excluded.saved_at`,
		state.UserID,
		string(data),
		state.Wallet.SoftTokens,
		state.Wallet.HardTokens,
		state.Progress.Level,
		toMillis(state.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("save user state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadUserState(ctx context.Context, userID string) (*models.PlatformUserState, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM platform_user_states WHERE user_id = ?`, userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user state: %w", err)
	}

	var state models.PlatformUserState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user state: %w", err)
	}
	return &state, nil
}

// AppendMovements inserts the batch in one transaction. Movements already stored
// under the same id are skipped, so a retried flush does not duplicate history.
func (s *SQLiteStore) AppendMovements(ctx context.Context, userID string, movements []models.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO movements (id, user_id, amount, token_kind, category, reason, balance_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range movements {
		if _, err := stmt.ExecContext(ctx,
			m.ID, userID, m.Amount, string(m.TokenKind), string(m.Category), m.Reason, m.BalanceAfter, toMillis(m.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert movement %s: %w", m.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM movements WHERE user_id = ? AND seq NOT IN (
		   SELECT seq FROM movements WHERE user_id = ? ORDER BY seq DESC LIMIT ?
		 )`, userID, userID, MaxMovementHistory,
	); err != nil {
		return fmt.Errorf("trim movements: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListMovements(ctx context.Context, userID string, limit int64) ([]models.Movement, error) {
	limit = clampHistoryLimit(limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, token_kind, category, reason, balance_after, created_at
		 FROM movements WHERE user_id = ? ORDER BY seq DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	movements := []models.Movement{}
	for rows.Next() {
		var (
			m         models.Movement
			kind      string
			category  string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Amount, &kind, &category, &m.Reason, &m.BalanceAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.TokenKind = models.TokenKind(kind)
		m.Category = models.MovementCategory(category)
		m.CreatedAt = fromMillis(createdAt)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}
