package game

import (
	"math/rand"
)

// Rand is the randomness the deck builder consumes.
// *rand.Rand satisfies it; tests can pass a deterministic source.
type Rand interface {
	Intn(n int) int
}

// DefaultRand uses the goroutine-safe top-level math/rand functions.
var DefaultRand Rand = globalRand{}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// BuildDeck replicates catalog rules.CopiesPerCard times, shuffles the result
// and deals the first rules.HandSize cards as the opening hand.
func BuildDeck(catalog []Card, rules Rules, rng Rand) (hand, deck []Card) {
	if rng == nil {
		rng = DefaultRand
	}
	cards := make([]Card, 0, len(catalog)*rules.CopiesPerCard)
	for i := 0; i < rules.CopiesPerCard; i++ {
		cards = append(cards, catalog...)
	}

	Shuffle(cards, rng)

	handSize := rules.HandSize
	if handSize > len(cards) {
		handSize = len(cards)
	}
	hand = append([]Card{}, cards[:handSize]...)
	deck = append([]Card{}, cards[handSize:]...)
	return hand, deck
}

// Shuffle permutes cards in place (Fisher-Yates): for i from the last index
// down to 1, swap element i with a uniformly chosen index in [0, i].
func Shuffle(cards []Card, rng Rand) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}
