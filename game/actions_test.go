package game

import (
	"errors"
	"strings"
	"testing"
)

func card(name string, power, attack int) Card {
	return Card{Name: name, Power: power, Attack: attack, MaxHP: power}
}

// newPlayingGame returns a started two-player game with fixed hands and
// alice to move.
func newPlayingGame() *GameState {
	return &GameState{
		Players: map[string]*PlayerState{
			"alice": {
				Hand:    []Card{card("Pikachu", 50, 20), card("Meowth", 40, 30), card("Psyduck", 60, 10)},
				Deck:    []Card{},
				Bench:   []Card{},
				Discard: []Card{},
			},
			"bob": {
				Hand:    []Card{card("Bulbasaur", 60, 10), card("Squirtle", 50, 20), card("Jigglypuff", 70, 10)},
				Deck:    []Card{},
				Bench:   []Card{},
				Discard: []Card{},
			},
		},
		TurnOrder:          []string{"alice", "bob"},
		CurrentPlayerIndex: 0,
		State:              Playing,
		Revision:           3,
		Rules:              DefaultRules(),
	}
}

func mustApply(t *testing.T, s *GameState, actor string, kind ActionKind, p Payload) *GameState {
	t.Helper()
	next, err := ApplyAction(s, actor, kind, p)
	if err != nil {
		t.Fatalf("%s by %s: %v", kind, actor, err)
	}
	return next
}

func play(name string) Payload {
	return Payload{Card: &Card{Name: name}}
}

func TestApplyAction_NotYourTurn(t *testing.T) {
	s := newPlayingGame()

	for _, kind := range []ActionKind{ActionPlayCard, ActionAttack, ActionSwap, ActionPromote, ActionEndTurn} {
		next, err := ApplyAction(s, "bob", kind, play("Bulbasaur"))
		if !errors.Is(err, ErrNotYourTurn) {
			t.Errorf("%s: expected ErrNotYourTurn, got %v", kind, err)
		}
		if next != s {
			t.Errorf("%s: rejected action must return the input state", kind)
		}
	}
	if s.CurrentPlayerIndex != 0 || s.State != Playing || len(s.Players["bob"].Hand) != 3 || s.Revision != 3 {
		t.Error("rejected actions mutated the state")
	}
}

func TestApplyAction_Lobby(t *testing.T) {
	s := CreateSession("alice", DefaultRules(), nil)
	_, err := ApplyAction(s, "alice", ActionEndTurn, Payload{})
	if !errors.Is(err, ErrNotPlaying) {
		t.Errorf("expected ErrNotPlaying, got %v", err)
	}
}

func TestApplyAction_UnknownAction(t *testing.T) {
	_, err := ApplyAction(newPlayingGame(), "alice", ActionKind("dance"), Payload{})
	if !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

func TestPlayCard_ActiveThenBench(t *testing.T) {
	s := newPlayingGame()

	s = mustApply(t, s, "alice", ActionPlayCard, play("Meowth"))
	alice := s.Players["alice"]
	if alice.ActivePokemon == nil || alice.ActivePokemon.Name != "Meowth" {
		t.Fatalf("expected Meowth active, got %+v", alice.ActivePokemon)
	}
	if len(alice.Hand) != 2 {
		t.Errorf("expected 2 cards left in hand, got %d", len(alice.Hand))
	}
	if s.Message != "alice played Meowth as their active Pokémon." {
		t.Errorf("unexpected message %q", s.Message)
	}

	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu"))
	alice = s.Players["alice"]
	if len(alice.Bench) != 1 || alice.Bench[0].Name != "Pikachu" {
		t.Errorf("expected Pikachu on bench, got %v", alice.Bench)
	}
	if alice.ActivePokemon.Name != "Meowth" {
		t.Error("playing to bench must not replace the active card")
	}
	if s.LastAction == nil || s.LastAction.Kind != ActionPlayCard || s.LastAction.Card != "Pikachu" {
		t.Errorf("unexpected lastAction %+v", s.LastAction)
	}
}

func TestPlayCard_FirstMatchByName(t *testing.T) {
	s := newPlayingGame()
	s.Players["alice"].Hand = []Card{card("Pikachu", 50, 20), card("Pikachu", 10, 20)}

	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu"))
	if got := s.Players["alice"].ActivePokemon.Power; got != 50 {
		t.Errorf("expected first Pikachu (power 50) to be played, got power %d", got)
	}
}

func TestPlayCard_NotInHand(t *testing.T) {
	s := newPlayingGame()
	next, err := ApplyAction(s, "alice", ActionPlayCard, play("Mewtwo"))
	if !errors.Is(err, ErrCardNotInHand) {
		t.Errorf("expected ErrCardNotInHand, got %v", err)
	}
	if next != s {
		t.Error("expected unchanged state")
	}
	if _, err := ApplyAction(s, "alice", ActionPlayCard, Payload{}); !errors.Is(err, ErrCardNotInHand) {
		t.Errorf("expected ErrCardNotInHand for empty payload, got %v", err)
	}
}

func TestPlayCard_BenchFull(t *testing.T) {
	s := newPlayingGame()
	active := card("Meowth", 40, 30)
	alice := s.Players["alice"]
	alice.ActivePokemon = &active
	for i := 0; i < 5; i++ {
		alice.Bench = append(alice.Bench, card("Psyduck", 60, 10))
	}

	_, err := ApplyAction(s, "alice", ActionPlayCard, play("Pikachu"))
	if !errors.Is(err, ErrBenchFull) {
		t.Errorf("expected ErrBenchFull, got %v", err)
	}
	if len(alice.Hand) != 3 || len(alice.Bench) != 5 {
		t.Error("rejected play mutated hand or bench")
	}
}

func TestAttack_Arithmetic(t *testing.T) {
	s := newPlayingGame()
	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu")) // attack 20
	s = mustApply(t, s, "alice", ActionEndTurn, Payload{})
	s = mustApply(t, s, "bob", ActionPlayCard, play("Squirtle")) // power 50
	s = mustApply(t, s, "bob", ActionEndTurn, Payload{})

	before := s
	s = mustApply(t, s, "alice", ActionAttack, Payload{})

	if got := s.Players["bob"].ActivePokemon.Power; got != 30 {
		t.Errorf("expected defender power 30, got %d", got)
	}
	if got := before.Players["bob"].ActivePokemon.Power; got != 50 {
		t.Errorf("attack mutated the previous snapshot: power %d", got)
	}
	want := "alice's Pikachu attacked bob's Squirtle for 20 damage!"
	if s.Message != want {
		t.Errorf("expected message %q, got %q", want, s.Message)
	}
	if s.LastAction.Damage != 20 || s.LastAction.Target != "Squirtle" {
		t.Errorf("unexpected lastAction %+v", s.LastAction)
	}
}

func TestAttack_RequiresBothActives(t *testing.T) {
	s := newPlayingGame()
	if _, err := ApplyAction(s, "alice", ActionAttack, Payload{}); !errors.Is(err, ErrNoActivePokemon) {
		t.Errorf("expected ErrNoActivePokemon, got %v", err)
	}
	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu"))
	if _, err := ApplyAction(s, "alice", ActionAttack, Payload{}); !errors.Is(err, ErrOpponentHasNoActive) {
		t.Errorf("expected ErrOpponentHasNoActive, got %v", err)
	}
}

func TestAttack_KnockoutEmptiesSlot(t *testing.T) {
	s := newPlayingGame()
	attacker := card("Meowth", 40, 30)
	defender := card("Squirtle", 20, 20)
	s.Players["alice"].ActivePokemon = &attacker
	s.Players["bob"].ActivePokemon = &defender

	s = mustApply(t, s, "alice", ActionAttack, Payload{})
	bob := s.Players["bob"]

	if bob.ActivePokemon != nil {
		t.Errorf("expected bob's active slot to be empty, got %+v", bob.ActivePokemon)
	}
	if bob.KnockedOutCount != 1 {
		t.Errorf("expected 1 knockout, got %d", bob.KnockedOutCount)
	}
	if len(bob.Discard) != 1 || bob.Discard[0].Power != -10 {
		t.Errorf("expected knocked out card in discard with power -10, got %v", bob.Discard)
	}
	if s.State != Playing {
		t.Errorf("expected game to continue, got %s", s.State)
	}
	if !strings.Contains(s.Message, "Squirtle was knocked out!") ||
		!strings.Contains(s.Message, "bob must now choose a new active Pokémon") {
		t.Errorf("unexpected message %q", s.Message)
	}
}

func TestAttack_ThirdKnockoutFinishesGame(t *testing.T) {
	s := newPlayingGame()
	attacker := card("Meowth", 40, 30)
	defender := card("Squirtle", 30, 20)
	s.Players["alice"].ActivePokemon = &attacker
	s.Players["bob"].ActivePokemon = &defender
	s.Players["bob"].KnockedOutCount = 2

	s = mustApply(t, s, "alice", ActionAttack, Payload{})

	if s.State != Finished {
		t.Fatalf("expected FINISHED, got %s", s.State)
	}
	if s.Winner != "alice" {
		t.Errorf("expected winner alice, got %q", s.Winner)
	}
	if !strings.HasSuffix(s.Message, "alice wins the game!") {
		t.Errorf("expected winner in message, got %q", s.Message)
	}
	if s.Players["bob"].KnockedOutCount != 3 {
		t.Errorf("expected 3 knockouts, got %d", s.Players["bob"].KnockedOutCount)
	}
	if s.Players["bob"].ActivePokemon == nil {
		t.Error("the deciding knockout leaves the defeated card in place")
	}

	for _, actor := range []string{"alice", "bob"} {
		for _, kind := range []ActionKind{ActionAttack, ActionEndTurn, ActionPlayCard} {
			next, err := ApplyAction(s, actor, kind, play("Pikachu"))
			if !errors.Is(err, ErrNotPlaying) {
				t.Errorf("%s by %s after finish: expected ErrNotPlaying, got %v", kind, actor, err)
			}
			if next.State != Finished {
				t.Errorf("state left FINISHED")
			}
		}
	}
}

func TestEndTurn_CyclesModulo(t *testing.T) {
	s := newPlayingGame()

	s = mustApply(t, s, "alice", ActionEndTurn, Payload{})
	if s.CurrentPlayerIndex != 1 {
		t.Errorf("expected index 1, got %d", s.CurrentPlayerIndex)
	}
	if s.Message != "bob's turn." {
		t.Errorf("unexpected message %q", s.Message)
	}
	s = mustApply(t, s, "bob", ActionEndTurn, Payload{})
	if s.CurrentPlayerIndex != 0 {
		t.Errorf("expected index back to 0, got %d", s.CurrentPlayerIndex)
	}
}

func TestSwap(t *testing.T) {
	s := newPlayingGame()
	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu"))
	s = mustApply(t, s, "alice", ActionPlayCard, play("Meowth"))
	s = mustApply(t, s, "alice", ActionPlayCard, play("Psyduck"))
	benchBefore := len(s.Players["alice"].Bench)

	s = mustApply(t, s, "alice", ActionSwap, Payload{NewActiveName: "Meowth"})
	alice := s.Players["alice"]

	if alice.ActivePokemon.Name != "Meowth" {
		t.Errorf("expected Meowth active, got %s", alice.ActivePokemon.Name)
	}
	if len(alice.Bench) != benchBefore {
		t.Errorf("bench size changed: %d -> %d", benchBefore, len(alice.Bench))
	}
	if last := alice.Bench[len(alice.Bench)-1]; last.Name != "Pikachu" {
		t.Errorf("expected former active at end of bench, got %s", last.Name)
	}
	if s.Message != "alice swapped their active Pokémon." {
		t.Errorf("unexpected message %q", s.Message)
	}
}

func TestSwap_Rejections(t *testing.T) {
	s := newPlayingGame()
	if _, err := ApplyAction(s, "alice", ActionSwap, Payload{NewActiveName: "Pikachu"}); !errors.Is(err, ErrNoActivePokemon) {
		t.Errorf("expected ErrNoActivePokemon, got %v", err)
	}
	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu"))
	if _, err := ApplyAction(s, "alice", ActionSwap, Payload{NewActiveName: "Meowth"}); !errors.Is(err, ErrNotOnBench) {
		t.Errorf("expected ErrNotOnBench, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	s := newPlayingGame()
	s.Players["alice"].Bench = []Card{card("Psyduck", 60, 10), card("Meowth", 40, 30)}

	s = mustApply(t, s, "alice", ActionPromote, Payload{NewActiveName: "Meowth"})
	alice := s.Players["alice"]
	if alice.ActivePokemon == nil || alice.ActivePokemon.Name != "Meowth" {
		t.Fatalf("expected Meowth promoted, got %+v", alice.ActivePokemon)
	}
	if len(alice.Bench) != 1 {
		t.Errorf("expected bench of 1, got %d", len(alice.Bench))
	}

	if _, err := ApplyAction(s, "alice", ActionPromote, Payload{NewActiveName: "Psyduck"}); !errors.Is(err, ErrActiveOccupied) {
		t.Errorf("expected ErrActiveOccupied, got %v", err)
	}
}

func TestRevision(t *testing.T) {
	s := newPlayingGame()
	start := s.Revision

	s = mustApply(t, s, "alice", ActionPlayCard, play("Pikachu"))
	if s.Revision != start+1 {
		t.Errorf("expected revision %d, got %d", start+1, s.Revision)
	}
	next, _ := ApplyAction(s, "bob", ActionEndTurn, Payload{})
	if next.Revision != start+1 {
		t.Errorf("rejected action changed revision to %d", next.Revision)
	}
}

// TestFullGame plays a whole session through the public operations: alice
// keeps attacking while bob only replaces knocked out cards.
func TestFullGame(t *testing.T) {
	s := CreateSession("A", DefaultRules(), nil)
	if len(s.Players["A"].Hand) != 5 || len(s.Players["A"].Deck) != 30 {
		t.Fatal("unexpected opening hand/deck size")
	}
	s, err := JoinSession(s, "B", nil)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(s.Players) != 2 || s.State != Lobby {
		t.Fatal("expected two players in the lobby")
	}
	s, err = StartSession(s)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	s = mustApply(t, s, "A", ActionPlayCard, Payload{Card: &s.Players["A"].Hand[0]})
	s = mustApply(t, s, "A", ActionEndTurn, Payload{})
	s = mustApply(t, s, "B", ActionPlayCard, Payload{Card: &s.Players["B"].Hand[0]})
	s = mustApply(t, s, "B", ActionEndTurn, Payload{})

	for i := 0; i < 200 && s.State == Playing; i++ {
		before := s.Players["B"].ActivePokemon.Power
		damage := s.Players["A"].ActivePokemon.Attack
		s = mustApply(t, s, "A", ActionAttack, Payload{})
		if s.State == Finished {
			break
		}
		if b := s.Players["B"].ActivePokemon; b != nil && b.Power != before-damage {
			t.Fatalf("expected power %d after attack, got %d", before-damage, b.Power)
		}
		s = mustApply(t, s, "A", ActionEndTurn, Payload{})
		if s.Players["B"].ActivePokemon == nil {
			s = mustApply(t, s, "B", ActionPlayCard, Payload{Card: &s.Players["B"].Hand[0]})
		}
		s = mustApply(t, s, "B", ActionEndTurn, Payload{})
	}

	if s.State != Finished {
		t.Fatalf("expected FINISHED, got %s", s.State)
	}
	if s.Players["B"].KnockedOutCount != 3 {
		t.Errorf("expected B to have 3 knockouts, got %d", s.Players["B"].KnockedOutCount)
	}
	if !strings.Contains(s.Message, "A wins the game!") {
		t.Errorf("expected A named as winner, got %q", s.Message)
	}
}
