package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"pokemon-battle-server/config"
	"pokemon-battle-server/game"
	"pokemon-battle-server/wsutil"
)

const botIDPrefix = "bot:"

// ErrNoProfiles is returned when no bot profile is configured.
var ErrNoProfiles = errors.New("no bot profiles configured")

// Sessions is the part of the session service a bot needs.
type Sessions interface {
	Actor
	Join(ctx context.Context, id, participantID string) (*game.GameState, error)
	Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error)
}

// DefaultIdleTimeout is how long a bot waits for its game to move before giving up.
const DefaultIdleTimeout = 10 * time.Minute

// Launcher seats bots in lobbies and runs them until their game ends.
type Launcher struct {
	ctx      context.Context
	sessions Sessions
	profiles []config.BotParams

	// IdleTimeout stops a bot whose lobby is never started or whose opponent
	// walked away. Zero disables it.
	IdleTimeout time.Duration
}

// NewLauncher returns a Launcher whose bots stop when ctx is cancelled.
func NewLauncher(ctx context.Context, sessions Sessions, profiles []config.BotParams) *Launcher {
	return &Launcher{ctx: ctx, sessions: sessions, profiles: profiles, IdleTimeout: DefaultIdleTimeout}
}

// AddBot joins a bot to gameID and starts its loop. It returns the bot's participant id.
func (l *Launcher) AddBot(ctx context.Context, gameID string) (string, error) {
	if len(l.profiles) == 0 {
		return "", ErrNoProfiles
	}
	params := l.profiles[rand.Intn(len(l.profiles))]
	botID := botIDPrefix + uuid.NewString()

	// Same shape as a websocket client: states arrive as game_state JSON on a buffered channel.
	botSend := make(chan []byte, 64)
	unsubscribe, err := l.sessions.Subscribe(ctx, gameID, func(s *game.GameState) {
		data, err := json.Marshal(game.BuildStateForPlayer(gameID, s, botID))
		if err != nil {
			return
		}
		wsutil.SafeSend(botSend, data)
	})
	if err != nil {
		return "", err
	}
	if _, err := l.sessions.Join(ctx, gameID, botID); err != nil {
		unsubscribe()
		return "", err
	}

	slog.Info("bot joined", "tag", "ai", "game", gameID, "name", params.Name, "bot", botID)
	go func() {
		defer func() {
			unsubscribe()
			close(botSend)
		}()
		Run(l.ctx, botSend, l.sessions, gameID, botID, params, l.IdleTimeout)
	}()
	return botID, nil
}
