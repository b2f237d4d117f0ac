package heuristic

import (
	"testing"

	"pokemon-battle-server/game"
)

func card(name string, power, attack int) game.Card {
	return game.Card{Name: name, Power: power, Attack: attack, MaxHP: power}
}

func TestHitsToKnockOut(t *testing.T) {
	cases := []struct{ attack, power, want int }{
		{20, 50, 3},
		{10, 10, 1},
		{30, 40, 2},
		{0, 40, noKnockout},
		{10, 0, 0},
		{10, -5, 0},
	}
	for _, tc := range cases {
		if got := HitsToKnockOut(tc.attack, tc.power); got != tc.want {
			t.Errorf("HitsToKnockOut(%d, %d) = %d, want %d", tc.attack, tc.power, got, tc.want)
		}
	}
}

func TestScore_UnregisteredReturnsNegative(t *testing.T) {
	if got := Score("goalkeeper", card("Pikachu", 50, 20), nil); got != -1 {
		t.Errorf("expected -1, got %v", got)
	}
}

func TestBest_LeadAgainstOpponent(t *testing.T) {
	hand := []game.Card{card("Jigglypuff", 70, 10), card("Meowth", 40, 30), card("Pikachu", 50, 20)}
	opp := card("Persian", 40, 30)

	// Jigglypuff needs four hits but only survives three; Meowth trades evenly and hits hardest.
	if got := Best(RoleLead, hand, &opp); got != 1 {
		t.Errorf("expected Meowth (1), got %d", got)
	}
}

func TestBest_LeadWithoutOpponentPrefersAttack(t *testing.T) {
	hand := []game.Card{card("Bulbasaur", 60, 10), card("Pikachu", 50, 20), card("Meowth", 40, 30)}
	if got := Best(RoleLead, hand, nil); got != 2 {
		t.Errorf("expected Meowth (2), got %d", got)
	}
}

func TestBest_ReservePrefersDurability(t *testing.T) {
	hand := []game.Card{card("Meowth", 40, 30), card("Jigglypuff", 70, 10)}
	if got := Best(RoleReserve, hand, nil); got != 1 {
		t.Errorf("expected Jigglypuff (1), got %d", got)
	}
}

func TestBest_Empty(t *testing.T) {
	if got := Best(RoleLead, nil, nil); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}
