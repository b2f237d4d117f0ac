package storage

import (
	"math"
	"strings"
)

const (
	EloK       = 32
	InitialElo = 1000

	anonymousUserIDPrefix = "anon:"
)

// GameResult is a finished game as handed to a HistoryStore.
// WinnerIndex is 0 or 1; -1 means no winner (abandoned).
type GameResult struct {
	ID               string
	SessionID        string
	Player0UserID    string
	Player1UserID    string
	Player0Knockouts int
	Player1Knockouts int
	WinnerIndex      int
	EndReason        string
	Revision         int64
}

// GameRecord is a single row returned for the history API.
type GameRecord struct {
	ID               string `json:"id"`
	SessionID        string `json:"session_id"`
	PlayedAt         string `json:"played_at"` // ISO8601
	Player0UserID    string `json:"player0_user_id"`
	Player1UserID    string `json:"player1_user_id"`
	Player0Knockouts int    `json:"player0_knockouts"`
	Player1Knockouts int    `json:"player1_knockouts"`
	WinnerIndex      *int   `json:"winner_index"`
	EndReason        string `json:"end_reason"`
	YourIndex        *int   `json:"your_index"` // set by ListByUserID
	Player0EloBefore *int   `json:"player0_elo_before,omitempty"`
	Player0EloAfter  *int   `json:"player0_elo_after,omitempty"`
	Player1EloBefore *int   `json:"player1_elo_before,omitempty"`
	Player1EloAfter  *int   `json:"player1_elo_after,omitempty"`
}

// LeaderboardEntry is a single row for the leaderboard API.
type LeaderboardEntry struct {
	UserID        string `json:"user_id"`
	Elo           int    `json:"elo"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Draws         int    `json:"draws"`
	IsAnonymous   bool   `json:"is_anonymous"`
	IsCurrentUser bool   `json:"is_current_user,omitempty"`
}

// IsAnonymousUserID reports whether id was minted for an unauthenticated player.
func IsAnonymousUserID(id string) bool {
	return strings.HasPrefix(id, anonymousUserIDPrefix)
}

// AnonymousUserID prefixes a generated id so ratings can tell guests apart.
func AnonymousUserID(raw string) string {
	return anonymousUserIDPrefix + raw
}

// computeEloUpdates returns new ratings (newR0, newR1) given current ratings and winnerIdx (0, 1, or -1 for draw).
func computeEloUpdates(r0, r1 int, winnerIdx int) (newR0, newR1 int) {
	var score0, score1 float64
	switch winnerIdx {
	case 0:
		score0, score1 = 1, 0
	case 1:
		score0, score1 = 0, 1
	default:
		score0, score1 = 0.5, 0.5
	}
	e0 := 1 / (1 + math.Pow(10, float64(r1-r0)/400))
	e1 := 1 - e0
	newR0 = r0 + int(math.Round(EloK*(score0-e0)))
	newR1 = r1 + int(math.Round(EloK*(score1-e1)))
	if newR0 < 0 {
		newR0 = 0
	}
	if newR1 < 0 {
		newR1 = 0
	}
	return newR0, newR1
}

// tallyResult applies one game outcome to two win/loss/draw records.
func tallyResult(p0, p1 *LeaderboardEntry, winnerIdx int) {
	switch winnerIdx {
	case 0:
		p0.Wins++
		p1.Losses++
	case 1:
		p0.Losses++
		p1.Wins++
	default:
		p0.Draws++
		p1.Draws++
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func winnerPtr(idx int) *int {
	if idx < 0 || idx > 1 {
		return nil
	}
	return &idx
}
