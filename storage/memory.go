package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"pokemon-battle-server/game"
	"pokemon-battle-server/matcherrors"
)

// MemoryStore keeps sessions, results and ratings in process memory.
// States are stored as JSON so readers never share memory with writers.
type MemoryStore struct {
	mu      sync.Mutex
	states  map[string]memoryRow
	results []memoryResult
	ratings map[string]*LeaderboardEntry
	broker  *Broker
}

type memoryRow struct {
	revision int64
	blob     []byte
}

type memoryResult struct {
	record   GameRecord
	playedAt time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  make(map[string]memoryRow),
		ratings: make(map[string]*LeaderboardEntry),
		broker:  NewBroker(),
	}
}

// Create stores the initial state of a new session.
func (m *MemoryStore) Create(ctx context.Context, id string, state *game.GameState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	m.mu.Lock()
	if _, exists := m.states[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("create session %s: %w", id, matcherrors.ErrRevisionConflict)
	}
	m.states[id] = memoryRow{revision: state.Revision, blob: blob}
	m.mu.Unlock()

	m.broker.Publish(id, state)
	return nil
}

// Load returns the current state of session id.
func (m *MemoryStore) Load(ctx context.Context, id string) (*game.GameState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	row, ok := m.states[id]
	m.mu.Unlock()
	if !ok {
		return nil, matcherrors.ErrSessionNotFound
	}
	var state game.GameState
	if err := json.Unmarshal(row.blob, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// Save replaces the state of session id if its stored revision is expectedRevision.
func (m *MemoryStore) Save(ctx context.Context, id string, state *game.GameState, expectedRevision int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	m.mu.Lock()
	row, ok := m.states[id]
	if !ok {
		m.mu.Unlock()
		return matcherrors.ErrSessionNotFound
	}
	if row.revision != expectedRevision {
		m.mu.Unlock()
		return matcherrors.ErrRevisionConflict
	}
	m.states[id] = memoryRow{revision: state.Revision, blob: blob}
	m.mu.Unlock()

	m.broker.Publish(id, state)
	return nil
}

// Subscribe registers onChange for every committed state of session id.
func (m *MemoryStore) Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.broker.Subscribe(id, onChange), nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() {}

// RecordResult stores a finished game and updates both players' ratings.
func (m *MemoryStore) RecordResult(ctx context.Context, r GameResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p0 := m.ratingLocked(r.Player0UserID)
	p1 := m.ratingLocked(r.Player1UserID)
	elo0Before, elo1Before := p0.Elo, p1.Elo
	p0.Elo, p1.Elo = computeEloUpdates(p0.Elo, p1.Elo, r.WinnerIndex)
	tallyResult(p0, p1, r.WinnerIndex)
	elo0After, elo1After := p0.Elo, p1.Elo

	m.results = append(m.results, memoryResult{
		playedAt: time.Now().UTC(),
		record: GameRecord{
			ID:               r.ID,
			SessionID:        r.SessionID,
			Player0UserID:    r.Player0UserID,
			Player1UserID:    r.Player1UserID,
			Player0Knockouts: r.Player0Knockouts,
			Player1Knockouts: r.Player1Knockouts,
			WinnerIndex:      winnerPtr(r.WinnerIndex),
			EndReason:        r.EndReason,
			Player0EloBefore: &elo0Before,
			Player0EloAfter:  &elo0After,
			Player1EloBefore: &elo1Before,
			Player1EloAfter:  &elo1After,
		},
	})
	return nil
}

func (m *MemoryStore) ratingLocked(userID string) *LeaderboardEntry {
	e, ok := m.ratings[userID]
	if !ok {
		e = &LeaderboardEntry{UserID: userID, Elo: InitialElo, IsAnonymous: IsAnonymousUserID(userID)}
		m.ratings[userID] = e
	}
	return e
}

// ListByUserID returns the user's games, newest first.
func (m *MemoryStore) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []GameRecord{}
	for i := len(m.results) - 1; i >= 0; i-- {
		res := m.results[i]
		r := res.record
		if r.Player0UserID != userID && r.Player1UserID != userID {
			continue
		}
		r.PlayedAt = res.playedAt.Format(time.RFC3339)
		yi := 0
		if r.Player1UserID == userID {
			yi = 1
		}
		r.YourIndex = &yi
		out = append(out, r)
	}
	return out, nil
}

// ListLeaderboard returns entries ordered by elo DESC.
func (m *MemoryStore) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)

	m.mu.Lock()
	all := make([]LeaderboardEntry, 0, len(m.ratings))
	for _, e := range m.ratings {
		all = append(all, *e)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Elo != all[j].Elo {
			return all[i].Elo > all[j].Elo
		}
		return all[i].UserID < all[j].UserID
	})
	if offset >= len(all) {
		return []LeaderboardEntry{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// GetLeaderboardEntryByUserID returns one player's entry, or (nil, nil) if unknown.
func (m *MemoryStore) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ratings[userID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}
