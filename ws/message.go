package ws

import (
	"encoding/json"

	"pokemon-battle-server/game"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// Client-to-server message types.
const (
	TypeAuth       = "auth"
	TypeCreateGame = "create_game"
	TypeJoinGame   = "join_game"
	TypeStartGame  = "start_game"
	TypePlayCard   = "play_card"
	TypeAttack     = "attack"
	TypeSwap       = "swap"
	TypePromote    = "promote"
	TypeEndTurn    = "end_turn"
	TypeLeaveGame  = "leave_game"
	TypeAddBot     = "add_bot"
)

// Server-to-client message types.
const (
	TypeWelcome   = "welcome"
	TypeGameState = "game_state"
	TypeError     = "error"
)

// --- Client-to-Server message payloads ---

// AuthMsg must be the first message on a connection. Token is an optional
// JWT; ParticipantID lets an anonymous player keep the id from an earlier
// welcome.
type AuthMsg struct {
	Type          string `json:"type"`
	Token         string `json:"token,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
}

// CreateGameMsg opens a new lobby.
type CreateGameMsg struct {
	Type string `json:"type"`
}

// JoinGameMsg joins an existing lobby.
type JoinGameMsg struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

// PlayCardMsg plays a card from hand. Only the name is matched.
type PlayCardMsg struct {
	Type string    `json:"type"`
	Card game.Card `json:"card"`
}

// SwapMsg is used for both swap and promote.
type SwapMsg struct {
	Type          string `json:"type"`
	NewActiveName string `json:"newActiveName"`
}

// --- Server-to-Client messages ---

// WelcomeMsg confirms authentication and tells the client its id.
type WelcomeMsg struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participantId"`
}

// ErrorMsg is sent when a client action is invalid.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
