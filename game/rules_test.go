package game

import (
	"encoding/json"
	"testing"
)

func TestIsTurnOf(t *testing.T) {
	s := newPlayingGame()

	if !IsTurnOf(s, "alice") {
		t.Error("expected alice's turn")
	}
	if IsTurnOf(s, "bob") {
		t.Error("did not expect bob's turn")
	}
	s.State = Lobby
	if IsTurnOf(s, "alice") {
		t.Error("nobody has the turn in the lobby")
	}
	if IsTurnOf(nil, "alice") {
		t.Error("nil state has no turn")
	}
}

func TestOpponentOf(t *testing.T) {
	s := newPlayingGame()
	if opp, ok := OpponentOf(s, "alice"); !ok || opp != "bob" {
		t.Errorf("expected bob, got %q (%v)", opp, ok)
	}
	solo := CreateSession("alice", DefaultRules(), nil)
	if _, ok := OpponentOf(solo, "alice"); ok {
		t.Error("expected no opponent in a one-player lobby")
	}
}

func TestEvaluateWin(t *testing.T) {
	s := newPlayingGame()
	s.Message = "x."

	EvaluateWin(s)
	if s.State != Playing {
		t.Fatal("no one has enough knockouts yet")
	}

	s.Players["alice"].KnockedOutCount = 3
	EvaluateWin(s)
	if s.State != Finished || s.Winner != "bob" {
		t.Errorf("expected bob to win, got state=%s winner=%q", s.State, s.Winner)
	}
	if s.Message != "x. bob wins the game!" {
		t.Errorf("unexpected message %q", s.Message)
	}

	msg := s.Message
	EvaluateWin(s)
	if s.Message != msg {
		t.Error("EvaluateWin on a finished game must be a no-op")
	}
}

func TestEvaluateWin_CustomThreshold(t *testing.T) {
	s := newPlayingGame()
	s.Rules.KnockoutsToWin = 1
	s.Players["bob"].KnockedOutCount = 1

	EvaluateWin(s)
	if s.Winner != "alice" {
		t.Errorf("expected alice to win at threshold 1, got %q", s.Winner)
	}
}

func TestClone_IsDeep(t *testing.T) {
	s := newPlayingGame()
	active := card("Pikachu", 50, 20)
	s.Players["alice"].ActivePokemon = &active
	s.LastAction = &ActionRecord{Actor: "alice", Kind: ActionAttack}

	c := s.Clone()
	c.Players["alice"].ActivePokemon.Power = 1
	c.Players["alice"].Hand[0].Name = "Changed"
	c.TurnOrder[0] = "mallory"
	c.LastAction.Actor = "mallory"
	c.Players["carol"] = &PlayerState{}

	if s.Players["alice"].ActivePokemon.Power != 50 {
		t.Error("clone shares the active card")
	}
	if s.Players["alice"].Hand[0].Name != "Pikachu" {
		t.Error("clone shares the hand")
	}
	if s.TurnOrder[0] != "alice" {
		t.Error("clone shares the turn order")
	}
	if s.LastAction.Actor != "alice" {
		t.Error("clone shares the last action")
	}
	if _, ok := s.Players["carol"]; ok {
		t.Error("clone shares the players map")
	}
}

func TestGameStateJSON_Shape(t *testing.T) {
	s := CreateSession("alice", DefaultRules(), nil)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"players", "turnOrder", "currentPlayerIndex", "state", "message", "lastAction", "revision"} {
		if _, ok := m[key]; !ok {
			t.Errorf("expected key %q in serialized state", key)
		}
	}
	if m["lastAction"] != nil {
		t.Errorf("expected lastAction null, got %v", m["lastAction"])
	}
	players := m["players"].(map[string]interface{})
	alice := players["alice"].(map[string]interface{})
	if alice["activePokemon"] != nil {
		t.Errorf("expected activePokemon null, got %v", alice["activePokemon"])
	}
	hand := alice["hand"].([]interface{})
	first := hand[0].(map[string]interface{})
	if _, ok := first["maxHp"]; !ok {
		t.Error("expected card key maxHp")
	}

	rules, ok := m["rules"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected rules object, got %v", m["rules"])
	}
	for _, key := range []string{"copiesPerCard", "handSize", "benchLimit", "knockoutsToWin", "maxPlayers"} {
		if _, ok := rules[key]; !ok {
			t.Errorf("expected rules key %q", key)
		}
	}
	if rules["knockoutsToWin"] != float64(3) {
		t.Errorf("expected knockoutsToWin 3, got %v", rules["knockoutsToWin"])
	}
}

func TestGameStateJSON_RulesSurviveRoundTrip(t *testing.T) {
	rules := DefaultRules()
	rules.BenchLimit = 2
	rules.KnockoutsToWin = 1
	data, err := json.Marshal(CreateSession("alice", rules, nil))
	if err != nil {
		t.Fatal(err)
	}
	var back GameState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Rules != rules {
		t.Errorf("expected rules %+v after reload, got %+v", rules, back.Rules)
	}
}

func TestBuildStateForPlayer(t *testing.T) {
	s := newPlayingGame()

	msg := BuildStateForPlayer("g1", s, "alice")
	if msg.Type != "game_state" || msg.GameID != "g1" || !msg.YourTurn {
		t.Errorf("unexpected message %+v", msg)
	}
	if BuildStateForPlayer("g1", s, "bob").YourTurn {
		t.Error("bob should not have the turn")
	}
}
