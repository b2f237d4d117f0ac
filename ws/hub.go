package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"pokemon-battle-server/config"
	"pokemon-battle-server/game"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionService defines what the Hub needs from the session layer.
type SessionService interface {
	Create(ctx context.Context, creatorID string) (string, *game.GameState, error)
	Join(ctx context.Context, id, participantID string) (*game.GameState, error)
	Start(ctx context.Context, id, participantID string) (*game.GameState, error)
	Act(ctx context.Context, id, actorID string, kind game.ActionKind, p game.Payload) (*game.GameState, error)
	Get(ctx context.Context, id string) (*game.GameState, error)
	Subscribe(ctx context.Context, id string, onChange func(*game.GameState)) (func(), error)
}

// IdentityResolver turns the auth message into a participant id.
type IdentityResolver interface {
	ResolveParticipant(token, claimedID string) (string, error)
}

// BotLauncher seats a computer opponent in a lobby.
type BotLauncher interface {
	AddBot(ctx context.Context, gameID string) (string, error)
}

// Hub maintains the set of active clients.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Sessions   SessionService
	Identity   IdentityResolver
	Config     *config.Config

	// Bots is optional; add_bot is refused when nil.
	Bots BotLauncher

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub(cfg *config.Config, sessions SessionService, identity IdentityResolver) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Sessions:   sessions,
		Identity:   identity,
		Config:     cfg,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run returns and no longer accepts new registrations.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "ws")
			for client := range h.Clients {
				close(client.Send)
				delete(h.Clients, client)
			}
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Info("client connected", "tag", "ws", "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				slog.Info("client disconnected", "tag", "ws", "clients", len(h.Clients), "participant", client.ParticipantID)
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade error", "tag", "ws", "err", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	select {
	case h.Register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}
