package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pokemon-battle-server/game"
	"pokemon-battle-server/matcherrors"
)

// stateChannel is the LISTEN/NOTIFY channel carrying "<sessionID>:<revision>".
const stateChannel = "game_state_changed"

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS game_sessions (
	id         TEXT PRIMARY KEY,
	revision   BIGINT NOT NULL,
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS game_history (
	id                 UUID PRIMARY KEY,
	session_id         TEXT NOT NULL,
	played_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	player0_user_id    TEXT NOT NULL,
	player1_user_id    TEXT NOT NULL,
	player0_knockouts  INT NOT NULL,
	player1_knockouts  INT NOT NULL,
	winner_index       SMALLINT,
	end_reason         TEXT,
	final_revision     BIGINT NOT NULL DEFAULT 0,
	player0_elo_before INT,
	player0_elo_after  INT,
	player1_elo_before INT,
	player1_elo_after  INT
);
CREATE INDEX IF NOT EXISTS idx_game_history_player0 ON game_history(player0_user_id);
CREATE INDEX IF NOT EXISTS idx_game_history_player1 ON game_history(player1_user_id);
CREATE TABLE IF NOT EXISTS player_ratings (
	user_id    TEXT PRIMARY KEY,
	elo        INT  NOT NULL DEFAULT 1000,
	wins       INT  NOT NULL DEFAULT 0,
	losses     INT  NOT NULL DEFAULT 0,
	draws      INT  NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_player_ratings_elo ON player_ratings(elo DESC);
`

// PostgresStore persists sessions and history in Postgres. State changes are
// announced with NOTIFY so every server instance sharing the database can
// push them to its own subscribers.
type PostgresStore struct {
	pool   *pgxpool.Pool
	broker *Broker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPostgresStore connects to Postgres, ensures the schema exists and
// starts the notification listener.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, matcherrors.ErrStoreNotConfigured
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTablesSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{pool: pool, broker: NewBroker(), cancel: cancel}
	s.wg.Add(1)
	go s.listen(listenCtx)

	slog.Info("connected to Postgres", "tag", "storage")
	return s, nil
}

// Close stops the listener and closes the connection pool.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.pool.Close()
}

// Create inserts the initial state of a new session.
func (s *PostgresStore) Create(ctx context.Context, id string, state *game.GameState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO game_sessions (id, revision, state) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		id, state.Revision, blob)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create session %s: %w", id, matcherrors.ErrRevisionConflict)
	}
	s.broker.Publish(id, state)
	return nil
}

// Load returns the current state of session id.
func (s *PostgresStore) Load(ctx context.Context, id string) (*game.GameState, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM game_sessions WHERE id = $1`, id).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, matcherrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var state game.GameState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// Save writes state if the stored revision still equals expectedRevision.
// The notification is sent inside the transaction, so listeners only hear
// about committed revisions.
func (s *PostgresStore) Save(ctx context.Context, id string, state *game.GameState, expectedRevision int64) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE game_sessions SET state = $1, revision = $2, updated_at = now() WHERE id = $3 AND revision = $4`,
		blob, state.Revision, id, expectedRevision)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM game_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return matcherrors.ErrSessionNotFound
		}
		return matcherrors.ErrRevisionConflict
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, stateChannel, notifyPayload(id, state.Revision)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.broker.Publish(id, state)
	return nil
}

// Subscribe registers onChange for every committed state of session id,
// including revisions written by other server instances.
func (s *PostgresStore) Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.broker.Subscribe(id, onChange), nil
}

// listen holds one pooled connection in LISTEN mode and republishes the
// announced revisions. It reconnects with a capped backoff.
func (s *PostgresStore) listen(ctx context.Context) {
	defer s.wg.Done()
	backoff := 500 * time.Millisecond
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("state listener stopped, reconnecting", "tag", "storage", "err", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+stateChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		id, rev, ok := parseNotifyPayload(n.Payload)
		if !ok || s.broker.Subscribers(id) == 0 {
			continue
		}
		state, err := s.Load(ctx, id)
		if err != nil {
			slog.Warn("reload after notify failed", "tag", "storage", "session", id, "err", err)
			continue
		}
		if state.Revision < rev {
			continue
		}
		s.broker.Publish(id, state)
	}
}

func notifyPayload(id string, revision int64) string {
	return id + ":" + strconv.FormatInt(revision, 10)
}

func parseNotifyPayload(payload string) (string, int64, bool) {
	i := strings.LastIndexByte(payload, ':')
	if i <= 0 {
		return "", 0, false
	}
	rev, err := strconv.ParseInt(payload[i+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return payload[:i], rev, true
}

// RecordResult updates ratings and inserts the history row in one transaction.
func (s *PostgresStore) RecordResult(ctx context.Context, r GameResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Ensure both players have a row (default 1000 elo, 0 W/L/D)
	for _, uid := range []string{r.Player0UserID, r.Player1UserID} {
		if _, err := tx.Exec(ctx, `INSERT INTO player_ratings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, uid); err != nil {
			return fmt.Errorf("ensure rating: %w", err)
		}
	}

	var p0, p1 LeaderboardEntry
	if err := tx.QueryRow(ctx, `SELECT elo, wins, losses, draws FROM player_ratings WHERE user_id = $1 FOR UPDATE`, r.Player0UserID).
		Scan(&p0.Elo, &p0.Wins, &p0.Losses, &p0.Draws); err != nil {
		return fmt.Errorf("read rating: %w", err)
	}
	if err := tx.QueryRow(ctx, `SELECT elo, wins, losses, draws FROM player_ratings WHERE user_id = $1 FOR UPDATE`, r.Player1UserID).
		Scan(&p1.Elo, &p1.Wins, &p1.Losses, &p1.Draws); err != nil {
		return fmt.Errorf("read rating: %w", err)
	}
	elo0Before, elo1Before := p0.Elo, p1.Elo
	p0.Elo, p1.Elo = computeEloUpdates(p0.Elo, p1.Elo, r.WinnerIndex)
	tallyResult(&p0, &p1, r.WinnerIndex)

	for _, row := range []struct {
		uid string
		e   LeaderboardEntry
	}{{r.Player0UserID, p0}, {r.Player1UserID, p1}} {
		if _, err := tx.Exec(ctx,
			`UPDATE player_ratings SET elo = $1, wins = $2, losses = $3, draws = $4, updated_at = now() WHERE user_id = $5`,
			row.e.Elo, row.e.Wins, row.e.Losses, row.e.Draws, row.uid); err != nil {
			return fmt.Errorf("update rating: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO game_history (id, session_id, player0_user_id, player1_user_id, player0_knockouts, player1_knockouts, winner_index, end_reason, final_revision, player0_elo_before, player0_elo_after, player1_elo_before, player1_elo_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.SessionID, r.Player0UserID, r.Player1UserID, r.Player0Knockouts, r.Player1Knockouts,
		winnerPtr(r.WinnerIndex), r.EndReason, r.Revision, elo0Before, p0.Elo, elo1Before, p1.Elo); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return tx.Commit(ctx)
}

// ListByUserID returns all games where the user participated, ordered by played_at DESC.
func (s *PostgresStore) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_id, played_at, player0_user_id, player1_user_id, player0_knockouts, player1_knockouts, winner_index, COALESCE(end_reason, ''),
			player0_elo_before, player0_elo_after, player1_elo_before, player1_elo_after
		FROM game_history
		WHERE player0_user_id = $1 OR player1_user_id = $1
		ORDER BY played_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRecord{}
	for rows.Next() {
		var r GameRecord
		var playedAt time.Time
		var winner *int16
		if err := rows.Scan(&r.ID, &r.SessionID, &playedAt, &r.Player0UserID, &r.Player1UserID, &r.Player0Knockouts, &r.Player1Knockouts,
			&winner, &r.EndReason, &r.Player0EloBefore, &r.Player0EloAfter, &r.Player1EloBefore, &r.Player1EloAfter); err != nil {
			return nil, err
		}
		r.PlayedAt = playedAt.UTC().Format(time.RFC3339)
		if winner != nil {
			r.WinnerIndex = winnerPtr(int(*winner))
		}
		yi := 0
		if r.Player1UserID == userID {
			yi = 1
		}
		r.YourIndex = &yi
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListLeaderboard returns entries ordered by elo DESC, with optional limit and offset.
func (s *PostgresStore) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, elo, wins, losses, draws
		FROM player_ratings
		ORDER BY elo DESC, user_id
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws); err != nil {
			return nil, err
		}
		e.IsAnonymous = IsAnonymousUserID(e.UserID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntryByUserID returns one player's entry, or (nil, nil) if not found.
func (s *PostgresStore) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.pool.QueryRow(ctx, `SELECT user_id, elo, wins, losses, draws FROM player_ratings WHERE user_id = $1`, userID).
		Scan(&e.UserID, &e.Elo, &e.Wins, &e.Losses, &e.Draws)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.IsAnonymous = IsAnonymousUserID(e.UserID)
	return &e, nil
}
