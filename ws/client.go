package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pokemon-battle-server/game"
	"pokemon-battle-server/matcherrors"
	"pokemon-battle-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Upper bound for one session-service call.
	requestTimeout = 5 * time.Second
)

// Client is a middleman between the websocket connection and the session service.
// ParticipantID, GameID and unsubscribe are only touched by the read goroutine.
type Client struct {
	Hub           *Hub
	Conn          *websocket.Conn
	Send          chan []byte
	ParticipantID string
	GameID        string

	unsubscribe func()

	// lastRevision is the newest state pushed to this client; older ones are dropped.
	mu           sync.Mutex
	lastRevision int64
}

// ReadPump pumps messages from the websocket connection to the session service.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.leaveGame()
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	if envelope.Type == TypeAuth {
		c.handleAuth(envelope.Raw)
		return
	}
	if c.ParticipantID == "" {
		c.sendError("Authenticate first.")
		return
	}

	switch envelope.Type {
	case TypeCreateGame:
		c.handleCreateGame()
	case TypeJoinGame:
		c.handleJoinGame(envelope.Raw)
	case TypeStartGame:
		c.handleStartGame()
	case TypePlayCard:
		var msg PlayCardMsg
		if err := json.Unmarshal(envelope.Raw, &msg); err != nil || msg.Card.Name == "" {
			c.sendError("Invalid play_card message.")
			return
		}
		c.act(game.ActionPlayCard, game.Payload{Card: &msg.Card})
	case TypeAttack:
		c.act(game.ActionAttack, game.Payload{})
	case TypeSwap, TypePromote:
		var msg SwapMsg
		if err := json.Unmarshal(envelope.Raw, &msg); err != nil || msg.NewActiveName == "" {
			c.sendError("Invalid " + envelope.Type + " message.")
			return
		}
		kind := game.ActionSwap
		if envelope.Type == TypePromote {
			kind = game.ActionPromote
		}
		c.act(kind, game.Payload{NewActiveName: msg.NewActiveName})
	case TypeEndTurn:
		c.act(game.ActionEndTurn, game.Payload{})
	case TypeLeaveGame:
		c.leaveGame()
	case TypeAddBot:
		c.handleAddBot()
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	if c.ParticipantID != "" {
		c.sendError("Already authenticated.")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid auth message.")
		return
	}
	id, err := c.Hub.Identity.ResolveParticipant(msg.Token, msg.ParticipantID)
	if err != nil {
		slog.Info("auth rejected", "tag", "ws", "err", err)
		c.sendError("Authentication failed.")
		return
	}
	c.ParticipantID = id
	c.sendJSON(WelcomeMsg{Type: TypeWelcome, ParticipantID: id})
}

func (c *Client) handleCreateGame() {
	if c.GameID != "" {
		c.sendError(errorText(matcherrors.ErrAlreadyInSession))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	id, state, err := c.Hub.Sessions.Create(ctx, c.ParticipantID)
	if err != nil {
		c.reportError("create", err)
		return
	}
	if err := c.subscribe(ctx, id); err != nil {
		c.reportError("subscribe", err)
		return
	}
	slog.Info("lobby opened", "tag", "ws", "game", id, "participant", c.ParticipantID)
	c.pushState(id, state)
}

func (c *Client) handleJoinGame(raw json.RawMessage) {
	if c.GameID != "" {
		c.sendError(errorText(matcherrors.ErrAlreadyInSession))
		return
	}
	var msg JoinGameMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.GameID == "" {
		c.sendError("Invalid join_game message.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	// Subscribe before joining so the join commit itself is delivered.
	if err := c.subscribe(ctx, msg.GameID); err != nil {
		c.reportError("subscribe", err)
		return
	}
	state, err := c.Hub.Sessions.Join(ctx, msg.GameID, c.ParticipantID)
	if err != nil {
		c.leaveGame()
		c.reportError("join", err)
		return
	}
	c.pushState(msg.GameID, state)
}

func (c *Client) handleStartGame() {
	if c.GameID == "" {
		c.sendError(errorText(matcherrors.ErrNotInSession))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	state, err := c.Hub.Sessions.Start(ctx, c.GameID, c.ParticipantID)
	if err != nil {
		c.reportError("start", err)
		return
	}
	c.pushState(c.GameID, state)
}

func (c *Client) handleAddBot() {
	if c.GameID == "" {
		c.sendError(errorText(matcherrors.ErrNotInSession))
		return
	}
	if c.Hub.Bots == nil {
		c.sendError("Bots are not available.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := c.Hub.Bots.AddBot(ctx, c.GameID); err != nil {
		c.reportError("add_bot", err)
	}
}

func (c *Client) act(kind game.ActionKind, p game.Payload) {
	if c.GameID == "" {
		c.sendError(errorText(matcherrors.ErrNotInSession))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	state, err := c.Hub.Sessions.Act(ctx, c.GameID, c.ParticipantID, kind, p)
	if err != nil {
		c.reportError(string(kind), err)
		return
	}
	c.pushState(c.GameID, state)
}

// subscribe attaches the client to gameID's committed states.
func (c *Client) subscribe(ctx context.Context, gameID string) error {
	participantID := c.ParticipantID
	unsubscribe, err := c.Hub.Sessions.Subscribe(ctx, gameID, func(s *game.GameState) {
		if s.HasParticipant(participantID) {
			c.pushState(gameID, s)
		}
	})
	if err != nil {
		return err
	}
	c.GameID = gameID
	c.unsubscribe = unsubscribe
	c.mu.Lock()
	c.lastRevision = 0
	c.mu.Unlock()
	return nil
}

func (c *Client) leaveGame() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.GameID = ""
}

// pushState sends s unless the client already saw the same or a newer revision.
func (c *Client) pushState(gameID string, s *game.GameState) {
	c.mu.Lock()
	if s.Revision <= c.lastRevision {
		c.mu.Unlock()
		return
	}
	c.lastRevision = s.Revision
	c.mu.Unlock()

	data, err := json.Marshal(game.BuildStateForPlayer(gameID, s, c.ParticipantID))
	if err != nil {
		slog.Error("marshaling game state", "tag", "ws", "err", err)
		return
	}
	if !wsutil.SafeSend(c.Send, data) {
		slog.Warn("dropped state update", "tag", "ws", "game", gameID, "participant", c.ParticipantID, "revision", s.Revision)
	}
}

// reportError tells the actor what went wrong. Rejections are expected and
// logged at debug; anything else is a collaborator failure.
func (c *Client) reportError(op string, err error) {
	if game.IsRejected(err) {
		slog.Debug("action rejected", "tag", "ws", "op", op, "participant", c.ParticipantID, "err", err)
	} else if clientError(err) == nil {
		slog.Error("session call failed", "tag", "ws", "op", op, "game", c.GameID, "err", err)
	}
	c.sendError(errorText(err))
}

func (c *Client) sendError(message string) {
	c.sendJSON(ErrorMsg{Type: TypeError, Message: message})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling message", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

// clientErrors are shown to the player as they are, without any wrapping context.
var clientErrors = []error{
	matcherrors.ErrSessionNotFound,
	matcherrors.ErrNotInSession,
	matcherrors.ErrAlreadyInSession,
	matcherrors.ErrTooMuchContention,
}

// clientError returns the sentinel err wraps, or nil for a server-side failure.
func clientError(err error) error {
	for _, sentinel := range clientErrors {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// errorText maps an error to the message shown to the player.
func errorText(err error) string {
	var re *game.RejectedError
	if errors.As(err, &re) {
		return sentence(re.Reason.Error())
	}
	if sentinel := clientError(err); sentinel != nil {
		return sentence(sentinel.Error())
	}
	return "Something went wrong, please try again."
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b) + "."
}
