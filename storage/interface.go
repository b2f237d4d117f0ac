package storage

import (
	"context"

	"pokemon-battle-server/game"
)

// StateStore persists game states by session id and distributes every
// committed state to subscribers.
//
// Save is conditional: it succeeds only if the stored revision equals
// expectedRevision, otherwise it returns matcherrors.ErrRevisionConflict and
// the caller must re-read and recompute.
type StateStore interface {
	Create(ctx context.Context, id string, state *game.GameState) error
	Load(ctx context.Context, id string) (*game.GameState, error)
	Save(ctx context.Context, id string, state *game.GameState, expectedRevision int64) error
	// Subscribe calls onChange with every committed state of the session,
	// in increasing revision order. The returned func unsubscribes.
	Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error)
	Close()
}

// HistoryStore abstracts persistence for finished games and ratings.
type HistoryStore interface {
	RecordResult(ctx context.Context, r GameResult) error
	ListByUserID(ctx context.Context, userID string) ([]GameRecord, error)
	ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
	GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error)
}

// Ensure the backends implement both interfaces at compile time.
var (
	_ StateStore   = (*MemoryStore)(nil)
	_ HistoryStore = (*MemoryStore)(nil)
	_ StateStore   = (*PostgresStore)(nil)
	_ HistoryStore = (*PostgresStore)(nil)
	_ StateStore   = (*SQLiteStore)(nil)
	_ HistoryStore = (*SQLiteStore)(nil)
)
