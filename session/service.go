package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"pokemon-battle-server/game"
	"pokemon-battle-server/matcherrors"
	"pokemon-battle-server/storage"
)

// DefaultMaxSaveRetries bounds the reload-and-retry loop when writers race.
const DefaultMaxSaveRetries = 5

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Rules          game.Rules
	Rand           game.Rand
	MaxSaveRetries int
}

// Service runs game transitions against a StateStore. Every mutation reads the
// latest state, reduces it with the game package and writes it back only if
// nobody else committed in between.
type Service struct {
	store      storage.StateStore
	history    storage.HistoryStore
	rules      game.Rules
	rng        game.Rand
	maxRetries int
	newID      func() string
}

// NewService creates a Service. history may be nil, in which case finished
// games are not recorded.
func NewService(store storage.StateStore, history storage.HistoryStore, opts Options) *Service {
	if opts.Rules == (game.Rules{}) {
		opts.Rules = game.DefaultRules()
	}
	if opts.MaxSaveRetries <= 0 {
		opts.MaxSaveRetries = DefaultMaxSaveRetries
	}
	return &Service{
		store:      store,
		history:    history,
		rules:      opts.Rules,
		rng:        opts.Rand,
		maxRetries: opts.MaxSaveRetries,
		newID:      uuid.NewString,
	}
}

// Create opens a new lobby owned by creatorID and returns its id.
func (s *Service) Create(ctx context.Context, creatorID string) (string, *game.GameState, error) {
	id := s.newID()
	state := game.CreateSession(creatorID, s.rules, s.rng)
	if err := s.store.Create(ctx, id, state); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	slog.Info("session created", "tag", "session", "id", id, "creator", creatorID)
	return id, state, nil
}

// Get returns the committed state of session id.
func (s *Service) Get(ctx context.Context, id string) (*game.GameState, error) {
	return s.store.Load(ctx, id)
}

// Join adds participantID to the lobby.
func (s *Service) Join(ctx context.Context, id, participantID string) (*game.GameState, error) {
	return s.mutate(ctx, id, func(cur *game.GameState) (*game.GameState, error) {
		return game.JoinSession(cur, participantID, s.rng)
	})
}

// Start moves the lobby into play. Only a seated participant may start it.
func (s *Service) Start(ctx context.Context, id, participantID string) (*game.GameState, error) {
	return s.mutate(ctx, id, func(cur *game.GameState) (*game.GameState, error) {
		if !cur.HasParticipant(participantID) {
			return nil, matcherrors.ErrNotInSession
		}
		next, err := game.StartSession(cur)
		if err != nil {
			return nil, err
		}
		next.LastAction.Actor = participantID
		return next, nil
	})
}

// Act applies an in-game action for actorID.
func (s *Service) Act(ctx context.Context, id, actorID string, kind game.ActionKind, p game.Payload) (*game.GameState, error) {
	return s.mutate(ctx, id, func(cur *game.GameState) (*game.GameState, error) {
		if !cur.HasParticipant(actorID) {
			return nil, matcherrors.ErrNotInSession
		}
		return game.ApplyAction(cur, actorID, kind, p)
	})
}

// Subscribe forwards every committed state of session id to onChange.
func (s *Service) Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error) {
	return s.store.Subscribe(ctx, id, onChange)
}

// mutate is the load → reduce → conditional save loop shared by all transitions.
// Rejections from reduce end the loop without writing.
func (s *Service) mutate(ctx context.Context, id string, reduce func(*game.GameState) (*game.GameState, error)) (*game.GameState, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		cur, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := reduce(cur)
		if err != nil {
			return nil, err
		}
		err = s.store.Save(ctx, id, next, cur.Revision)
		if errors.Is(err, matcherrors.ErrRevisionConflict) {
			slog.Debug("revision conflict, retrying", "tag", "session", "id", id, "revision", cur.Revision, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		if cur.State != game.Finished && next.State == game.Finished {
			s.recordResult(ctx, id, next)
		}
		return next, nil
	}
	slog.Warn("gave up after repeated conflicts", "tag", "session", "id", id, "attempts", s.maxRetries)
	return nil, matcherrors.ErrTooMuchContention
}

func (s *Service) recordResult(ctx context.Context, id string, state *game.GameState) {
	if s.history == nil || len(state.TurnOrder) != 2 {
		return
	}
	result := resultFromState(id, state)
	result.ID = s.newID()
	if err := s.history.RecordResult(ctx, result); err != nil {
		slog.Error("recording game result", "tag", "session", "id", id, "err", err)
		return
	}
	slog.Info("game finished", "tag", "session", "id", id, "winner", state.Winner)
}

// resultFromState flattens a finished two-player state into a history row.
func resultFromState(id string, state *game.GameState) storage.GameResult {
	p0, p1 := state.TurnOrder[0], state.TurnOrder[1]
	winner := -1
	switch state.Winner {
	case p0:
		winner = 0
	case p1:
		winner = 1
	}
	r := storage.GameResult{
		SessionID:     id,
		Player0UserID: p0,
		Player1UserID: p1,
		WinnerIndex:   winner,
		EndReason:     "completed",
		Revision:      state.Revision,
	}
	if ps := state.Players[p0]; ps != nil {
		r.Player0Knockouts = ps.KnockedOutCount
	}
	if ps := state.Players[p1]; ps != nil {
		r.Player1Knockouts = ps.KnockedOutCount
	}
	return r
}
