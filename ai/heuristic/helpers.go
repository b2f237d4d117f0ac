package heuristic

import "math"

// noKnockout stands in for "never" when an attacker deals no damage.
const noKnockout = 99

// HitsToKnockOut returns how many attacks of the given strength bring power to zero or below.
// Exported for use by ai.chooseSwap.
func HitsToKnockOut(attack, power int) int {
	if power <= 0 {
		return 0
	}
	if attack <= 0 {
		return noKnockout
	}
	return int(math.Ceil(float64(power) / float64(attack)))
}
