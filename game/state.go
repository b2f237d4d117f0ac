package game

// Phase is the lifecycle stage of a session. It only moves forward:
// Lobby -> Playing -> Finished.
type Phase string

const (
	Lobby    Phase = "LOBBY"
	Playing  Phase = "PLAYING"
	Finished Phase = "FINISHED"
)

// PlayerState is one participant's side of the table.
type PlayerState struct {
	Hand            []Card `json:"hand"`
	Deck            []Card `json:"deck"`
	ActivePokemon   *Card  `json:"activePokemon"`
	Bench           []Card `json:"bench"`
	Discard         []Card `json:"discard"`
	KnockedOutCount int    `json:"knockedOutCount"`
}

// ActionRecord describes the last accepted transition.
type ActionRecord struct {
	Actor  string     `json:"actor"`
	Kind   ActionKind `json:"kind"`
	Card   string     `json:"card,omitempty"`
	Target string     `json:"target,omitempty"`
	Damage int        `json:"damage,omitempty"`
}

// GameState is the root aggregate: the unit of persistence and distribution.
// Revision grows by one with every accepted transition so stores can reject
// writes computed from a stale snapshot.
type GameState struct {
	Players            map[string]*PlayerState `json:"players"`
	TurnOrder          []string                `json:"turnOrder"`
	CurrentPlayerIndex int                     `json:"currentPlayerIndex"`
	State              Phase                   `json:"state"`
	Message            string                  `json:"message"`
	LastAction         *ActionRecord           `json:"lastAction"`
	Revision           int64                   `json:"revision"`
	Winner             string                  `json:"winner,omitempty"`
	Rules              Rules                   `json:"rules"`
}

// CurrentPlayer returns the participant whose turn it is, or "" if the turn order is empty.
func (s *GameState) CurrentPlayer() string {
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.TurnOrder) {
		return ""
	}
	return s.TurnOrder[s.CurrentPlayerIndex]
}

// HasParticipant reports whether id is part of the turn order.
func (s *GameState) HasParticipant(id string) bool {
	for _, p := range s.TurnOrder {
		if p == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the state. Transitions always operate on a
// clone so the caller's snapshot stays valid for comparison and retries.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = make(map[string]*PlayerState, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p.clone()
	}
	out.TurnOrder = append([]string{}, s.TurnOrder...)
	if s.LastAction != nil {
		la := *s.LastAction
		out.LastAction = &la
	}
	return &out
}

func (p *PlayerState) clone() *PlayerState {
	if p == nil {
		return nil
	}
	out := &PlayerState{
		Hand:            cloneCards(p.Hand),
		Deck:            cloneCards(p.Deck),
		Bench:           cloneCards(p.Bench),
		Discard:         cloneCards(p.Discard),
		KnockedOutCount: p.KnockedOutCount,
	}
	if p.ActivePokemon != nil {
		active := *p.ActivePokemon
		out.ActivePokemon = &active
	}
	return out
}

func newPlayerState(hand, deck []Card) *PlayerState {
	return &PlayerState{
		Hand:    hand,
		Deck:    deck,
		Bench:   []Card{},
		Discard: []Card{},
	}
}

// GameStateMsg is the state broadcast to one participant.
type GameStateMsg struct {
	Type     string     `json:"type"`
	GameID   string     `json:"gameId"`
	YourTurn bool       `json:"yourTurn"`
	State    *GameState `json:"state"`
}

// BuildStateForPlayer returns the game state message for the given participant.
func BuildStateForPlayer(gameID string, s *GameState, participantID string) GameStateMsg {
	return GameStateMsg{
		Type:     "game_state",
		GameID:   gameID,
		YourTurn: IsTurnOf(s, participantID),
		State:    s,
	}
}
