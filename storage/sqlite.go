package storage

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

	"pokemon-battle-server/game"
	"pokemon-battle-server/matcherrors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id         TEXT PRIMARY KEY,
	revision   INTEGER NOT NULL,
	state      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS game_history (
	id                 TEXT PRIMARY KEY,
	session_id         TEXT NOT NULL,
	played_at          INTEGER NOT NULL,
	player0_user_id    TEXT NOT NULL,
	player1_user_id    TEXT NOT NULL,
	player0_knockouts  INTEGER NOT NULL,
	player1_knockouts  INTEGER NOT NULL,
	winner_index       INTEGER,
	end_reason         TEXT NOT NULL DEFAULT '',
	final_revision     INTEGER NOT NULL DEFAULT 0,
	player0_elo_before INTEGER,
	player0_elo_after  INTEGER,
	player1_elo_before INTEGER,
	player1_elo_after  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_game_history_player0 ON game_history(player0_user_id);
CREATE INDEX IF NOT EXISTS idx_game_history_player1 ON game_history(player1_user_id);
CREATE TABLE IF NOT EXISTS player_ratings (
	user_id    TEXT PRIMARY KEY,
	elo        INTEGER NOT NULL DEFAULT 1000,
	wins       INTEGER NOT NULL DEFAULT 0,
	losses     INTEGER NOT NULL DEFAULT 0,
	draws      INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_player_ratings_elo ON player_ratings(elo DESC);
`

// SQLiteStore is a single-node store backed by a SQLite file.
// Subscribers are served by an in-process Broker.
type SQLiteStore struct {
	sqlDB  *sql.DB
	broker *Broker
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB, broker: NewBroker()}, nil
}

// Close releases the SQLite connection.
func (s *SQLiteStore) Close() {
	if s == nil || s.sqlDB == nil {
		return
	}
	_ = s.sqlDB.Close()
}

// Create inserts the initial state of a new session.
func (s *SQLiteStore) Create(ctx context.Context, id string, state *game.GameState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO game_sessions (id, revision, state, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		id, state.Revision, string(blob), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("create session %s: %w", id, matcherrors.ErrRevisionConflict)
	}
	s.broker.Publish(id, state)
	return nil
}

// Load returns the current state of session id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*game.GameState, error) {
	var blob string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT state FROM game_sessions WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matcherrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var state game.GameState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// Save writes state if the stored revision still equals expectedRevision.
func (s *SQLiteStore) Save(ctx context.Context, id string, state *game.GameState, expectedRevision int64) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE game_sessions SET state = ?, revision = ?, updated_at = ? WHERE id = ? AND revision = ?`,
		string(blob), state.Revision, time.Now().UTC().UnixMilli(), id, expectedRevision)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM game_sessions WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if exists == 0 {
			return matcherrors.ErrSessionNotFound
		}
		return matcherrors.ErrRevisionConflict
	}
	s.broker.Publish(id, state)
	return nil
}

// Subscribe registers onChange for every committed state of session id.
func (s *SQLiteStore) Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.broker.Subscribe(id, onChange), nil
}

// RecordResult updates ratings and inserts the history row in one transaction.
func (s *SQLiteStore) RecordResult(ctx context.Context, r GameResult) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().UnixMilli()
	for _, uid := range []string{r.Player0UserID, r.Player1UserID} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO player_ratings (user_id, updated_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`, uid, now); err != nil {
			return fmt.Errorf("ensure rating: %w", err)
		}
	}

	var p0, p1 LeaderboardEntry
	if err := tx.QueryRowContext(ctx, `SELECT elo, wins, losses, draws FROM player_ratings WHERE user_id = ?`, r.Player0UserID).
		Scan(&p0.Elo, &p0.Wins, &p0.Losses, &p0.Draws); err != nil {
		return fmt.Errorf("read rating: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT elo, wins, losses, draws FROM player_ratings WHERE user_id = ?`, r.Player1UserID).
		Scan(&p1.Elo, &p1.Wins, &p1.Losses, &p1.Draws); err != nil {
		return fmt.Errorf("read rating: %w", err)
	}
	elo0Before, elo1Before := p0.Elo, p1.Elo
	p0.Elo, p1.Elo = computeEloUpdates(p0.Elo, p1.Elo, r.WinnerIndex)
	tallyResult(&p0, &p1, r.WinnerIndex)

	update := `UPDATE player_ratings SET elo = ?, wins = ?, losses = ?, draws = ?, updated_at = ? WHERE user_id = ?`
	if _, err := tx.ExecContext(ctx, update, p0.Elo, p0.Wins, p0.Losses, p0.Draws, now, r.Player0UserID); err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if _, err := tx.ExecContext(ctx, update, p1.Elo, p1.Wins, p1.Losses, p1.Draws, now, r.Player1UserID); err != nil {
		return fmt.Errorf("update rating: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO game_history (
	id, session_id, played_at, player0_user_id, player1_user_id, player0_knockouts, player1_knockouts,
	winner_index, end_reason, final_revision, player0_elo_before, player0_elo_after, player1_elo_before, player1_elo_after
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, now, r.Player0UserID, r.Player1UserID, r.Player0Knockouts, r.Player1Knockouts,
		winnerPtr(r.WinnerIndex), r.EndReason, r.Revision, elo0Before, p0.Elo, elo1Before, p1.Elo); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return tx.Commit()
}

// ListByUserID returns all games where the user participated, newest first.
func (s *SQLiteStore) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, played_at, player0_user_id, player1_user_id, player0_knockouts, player1_knockouts, winner_index, end_reason,
	player0_elo_before, player0_elo_after, player1_elo_before, player1_elo_after
FROM game_history
WHERE player0_user_id = ? OR player1_user_id = ?
ORDER BY played_at DESC, rowid DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var playedAt int64
		var winner, e0b, e0a, e1b, e1a sql.NullInt64
		if err := rows.Scan(&r.ID, &r.SessionID, &playedAt, &r.Player0UserID, &r.Player1UserID, &r.Player0Knockouts, &r.Player1Knockouts,
			&winner, &r.EndReason, &e0b, &e0a, &e1b, &e1a); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.PlayedAt = time.UnixMilli(playedAt).UTC().Format(time.RFC3339)
		if winner.Valid {
			r.WinnerIndex = winnerPtr(int(winner.Int64))
		}
		r.Player0EloBefore = nullIntPtr(e0b)
		r.Player0EloAfter = nullIntPtr(e0a)
		r.Player1EloBefore = nullIntPtr(e1b)
		r.Player1EloAfter = nullIntPtr(e1a)
		yi := 0
		if r.Player1UserID == userID {
			yi = 1
		}
		r.YourIndex = &yi
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListLeaderboard returns entries ordered by elo DESC.
func (s *SQLiteStore) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, elo, wins, losses, draws
FROM player_ratings
ORDER BY elo DESC, user_id
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	defer rows.Close()

	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		e.IsAnonymous = IsAnonymousUserID(e.UserID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntryByUserID returns one player's entry, or (nil, nil) if not found.
func (s *SQLiteStore) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.sqlDB.QueryRowContext(ctx, `SELECT user_id, elo, wins, losses, draws FROM player_ratings WHERE user_id = ?`, userID).
		Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	e.IsAnonymous = IsAnonymousUserID(e.UserID)
	return &e, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
