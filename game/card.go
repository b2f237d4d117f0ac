package game

// Card is a single card instance. Cards are plain values: every container
// (hand, deck, bench, active slot, discard) holds its own copy, so damage
// dealt to one instance never leaks into another with the same name.
type Card struct {
	Name   string `json:"name"`
	Power  int    `json:"power"` // current HP
	Attack int    `json:"attack"`
	MaxHP  int    `json:"maxHp"`
}

// KnockedOut reports whether the card has no HP left.
func (c Card) KnockedOut() bool {
	return c.Power <= 0
}

// Catalog is the fixed set of card templates every deck is built from.
var Catalog = []Card{
	{Name: "Pikachu", Power: 50, Attack: 20, MaxHP: 50},
	{Name: "Bulbasaur", Power: 60, Attack: 10, MaxHP: 60},
	{Name: "Squirtle", Power: 50, Attack: 20, MaxHP: 50},
	{Name: "Charmander", Power: 50, Attack: 20, MaxHP: 50},
	{Name: "Jigglypuff", Power: 70, Attack: 10, MaxHP: 70},
	{Name: "Meowth", Power: 40, Attack: 30, MaxHP: 40},
	{Name: "Psyduck", Power: 60, Attack: 10, MaxHP: 60},
}

// indexByName returns the index of the first card named name, or -1.
func indexByName(cards []Card, name string) int {
	for i, c := range cards {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// removeAt returns cards without the element at i. The input slice is not modified.
func removeAt(cards []Card, i int) []Card {
	out := make([]Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return []Card{}
	}
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
