// turn/turn.go
package turn

import (
	"sort"

	"github.com/serpientes/gameserver/models"
)

// Scheduler owns whose turn it is within a game. It operates on loaded
// state; callers persist the mutated game afterwards.
type Scheduler struct{}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// SortByTurnOrder orders players in place by their fixed turn rank.
func SortByTurnOrder(players []*models.Player) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].TurnOrder < players[j].TurnOrder
	})
}

// CurrentPlayer returns the player at the game's current turn index, or
// nil when the index is out of range for the given roster.
func (s *Scheduler) CurrentPlayer(game *models.Game, players []*models.Player) *models.Player {
	if game.CurrentTurnIndex < 0 || game.CurrentTurnIndex >= len(players) {
		return nil
	}
	SortByTurnOrder(players)
	return players[game.CurrentTurnIndex]
}

// IsPlayersTurn reports whether playerID holds the current turn.
func (s *Scheduler) IsPlayersTurn(game *models.Game, players []*models.Player, playerID string) bool {
	current := s.CurrentPlayer(game, players)
	return current != nil && current.ID == playerID
}

// AdvanceTurn moves the turn to the next player with status Playing and
// resets the phase to WaitingForDice. The scan is bounded by the roster
// size; if no player is Playing the game is left untouched.
func (s *Scheduler) AdvanceTurn(game *models.Game, players []*models.Player) {
	if len(players) == 0 {
		return
	}
	SortByTurnOrder(players)

	anyPlaying := false
	for _, p := range players {
		if p.Status == models.PlayerPlaying {
			anyPlaying = true
			break
		}
	}
	if !anyPlaying {
		return
	}

	index := game.CurrentTurnIndex
	for i := 0; i < len(players); i++ {
		index = (index + 1) % len(players)
		if players[index].Status == models.PlayerPlaying {
			break
		}
	}
	game.CurrentTurnIndex = index
	game.TurnPhase = models.PhaseWaitingForDice
}
