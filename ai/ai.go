package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"pokemon-battle-server/ai/heuristic"
	"pokemon-battle-server/config"
	"pokemon-battle-server/game"
)

// Actor applies the bot's moves.
type Actor interface {
	Act(ctx context.Context, id, actorID string, kind game.ActionKind, p game.Payload) (*game.GameState, error)
}

// Move is one decision of the bot.
type Move struct {
	Kind    game.ActionKind
	Payload game.Payload
	Reason  string
}

// Move reasons (for logging).
const (
	reasonFillActive = "fill_active"
	reasonPromote    = "promote_from_bench"
	reasonSwap       = "better_matchup"
	reasonAttack     = "attack"
	reasonReserve    = "bench_reserve"
	reasonNothing    = "nothing_left"
	reasonMistake    = "mistake"
)

// swapMargin is how much better a benched card must score before the bot gives up its active.
const swapMargin = 1.0

// turnMemory is what the bot has already done during its current turn.
type turnMemory struct {
	attacked bool
	swapped  bool
	benched  bool
}

// Run receives game state messages from the given channel and acts through actor
// when it is the bot's turn. It only uses information from the game_state payload.
// It runs until the channel is closed, ctx is cancelled, the game finishes or
// no state arrives for idle. A zero idle never times out.
func Run(ctx context.Context, botSend <-chan []byte, actor Actor, gameID, botID string, params config.BotParams, idle time.Duration) {
	var memory turnMemory

	var idleC <-chan time.Time
	var idleTimer *time.Timer
	if idle > 0 {
		idleTimer = time.NewTimer(idle)
		defer idleTimer.Stop()
		idleC = idleTimer.C
	}

	for {
		var data []byte
		var ok bool
		select {
		case <-ctx.Done():
			return
		case <-idleC:
			slog.Info("bot idle, leaving", "tag", "ai", "game", gameID, "name", params.Name)
			return
		case data, ok = <-botSend:
			if !ok {
				return
			}
		}
		if idleTimer != nil {
			idleTimer.Reset(idle)
		}

		var msg game.GameStateMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "game_state" || msg.State == nil {
			continue
		}
		state := msg.State
		if state.State == game.Finished {
			slog.Debug("game over", "tag", "ai", "name", params.Name, "winner", state.Winner)
			return
		}
		if state.State != game.Playing || !msg.YourTurn {
			memory = turnMemory{}
			continue
		}

		// Human-like delay before acting
		delayMS := params.DelayMinMS
		if params.DelayMaxMS > params.DelayMinMS {
			delayMS = params.DelayMinMS + rand.Intn(params.DelayMaxMS-params.DelayMinMS)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(delayMS) * time.Millisecond):
		}

		move := chooseMove(state, botID, &memory, params.MistakeChance)
		slog.Debug("bot move", "tag", "ai", "name", params.Name, "move", move.Kind, "reason", move.Reason)
		if _, err := actor.Act(ctx, gameID, botID, move.Kind, move.Payload); err != nil {
			slog.Debug("bot move refused, ending turn", "tag", "ai", "name", params.Name, "err", err)
			if move.Kind != game.ActionEndTurn {
				actor.Act(ctx, gameID, botID, game.ActionEndTurn, game.Payload{})
			}
		}
	}
}

// chooseMove picks the next move for botID and records it in memory.
// The turn always ends with endTurn: fill the active slot, switch to a better
// matchup, attack once, keep one reserve on the bench, then pass.
func chooseMove(state *game.GameState, botID string, memory *turnMemory, mistakeChance int) Move {
	me := state.Players[botID]
	var oppActive *game.Card
	if oppID, ok := game.OpponentOf(state, botID); ok {
		if opp := state.Players[oppID]; opp != nil {
			oppActive = opp.ActivePokemon
		}
	}
	pick := func(role string, cards []game.Card) (int, string) {
		if mistakeChance > 0 && rand.Intn(100) < mistakeChance {
			return rand.Intn(len(cards)), reasonMistake
		}
		return heuristic.Best(role, cards, oppActive), ""
	}

	if me.ActivePokemon == nil {
		if len(me.Hand) > 0 {
			i, why := pick(heuristic.RoleLead, me.Hand)
			return playMove(me.Hand[i], orReason(why, reasonFillActive))
		}
		if len(me.Bench) > 0 {
			i, why := pick(heuristic.RoleLead, me.Bench)
			return Move{
				Kind:    game.ActionPromote,
				Payload: game.Payload{NewActiveName: me.Bench[i].Name},
				Reason:  orReason(why, reasonPromote),
			}
		}
		return Move{Kind: game.ActionEndTurn, Reason: reasonNothing}
	}

	if !memory.attacked && !memory.swapped && oppActive != nil && len(me.Bench) > 0 {
		if i := chooseSwap(*me.ActivePokemon, me.Bench, oppActive); i >= 0 {
			memory.swapped = true
			return Move{
				Kind:    game.ActionSwap,
				Payload: game.Payload{NewActiveName: me.Bench[i].Name},
				Reason:  reasonSwap,
			}
		}
	}

	if !memory.attacked && oppActive != nil {
		memory.attacked = true
		return Move{Kind: game.ActionAttack, Reason: reasonAttack}
	}

	if !memory.benched && len(me.Hand) > 0 && len(me.Bench) == 0 {
		memory.benched = true
		i, why := pick(heuristic.RoleReserve, me.Hand)
		return playMove(me.Hand[i], orReason(why, reasonReserve))
	}

	return Move{Kind: game.ActionEndTurn, Reason: reasonNothing}
}

// chooseSwap returns the bench index worth swapping in, or -1 to keep the current active.
// A card that can take the opponent out before being knocked out is never replaced.
func chooseSwap(active game.Card, bench []game.Card, opp *game.Card) int {
	if heuristic.HitsToKnockOut(active.Attack, opp.Power) <= heuristic.HitsToKnockOut(opp.Attack, active.Power) {
		return -1
	}
	i := heuristic.Best(heuristic.RoleLead, bench, opp)
	if i < 0 {
		return -1
	}
	if heuristic.Score(heuristic.RoleLead, bench[i], opp) < heuristic.Score(heuristic.RoleLead, active, opp)+swapMargin {
		return -1
	}
	return i
}

func playMove(c game.Card, reason string) Move {
	return Move{Kind: game.ActionPlayCard, Payload: game.Payload{Card: &c}, Reason: reason}
}

func orReason(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
