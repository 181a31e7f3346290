// game/game.go
package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serpientes/gameserver/board"
	"github.com/serpientes/gameserver/broadcast"
	"github.com/serpientes/gameserver/dice"
	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/persistence"
	"github.com/serpientes/gameserver/turn"
)

// Special events carried on a move result.
const (
	SpecialLadder   = "Ladder"
	SpecialSnake    = "Snake"
	SpecialProfesor = "Profesor"
)

// Rewards is the economy hook consulted when a game ends. Failures are
// logged, never surfaced to the mover.
type Rewards interface {
	GrantWin(userID string) error
	RecordPlayed(userID string) error
}

// Lobby is the slice of the room manager the engine needs: the room's
// exclusion scope during promotion, and the lobby view for broadcasts.
type Lobby interface {
	LockRoom(roomID string) func()
	Summary(roomID string) (*models.RoomSummary, error)
}

// Engine is the session state machine. It is the only mutator of game
// and player state once a room has been promoted; calls against the
// same game are serialized through a per-game mutex, and the game row's
// version token rejects any write that slipped past it.
type Engine struct {
	store       persistence.Store
	boards      *board.Generator
	dice        dice.Roller
	turns       *turn.Scheduler
	broadcaster broadcast.Broadcaster
	rewards     Rewards
	lobby       Lobby

	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store persistence.Store, boards *board.Generator, roller dice.Roller, broadcaster broadcast.Broadcaster, rewards Rewards, lobby Lobby) *Engine {
	return &Engine{
		store:       store,
		boards:      boards,
		dice:        roller,
		turns:       turn.NewScheduler(),
		broadcaster: broadcaster,
		rewards:     rewards,
		lobby:       lobby,
		locks:       make(map[string]*sync.Mutex),
	}
}

// lockGame acquires the game's exclusion scope.
func (e *Engine) lockGame(gameID string) func() {
	e.mutex.Lock()
	lock, exists := e.locks[gameID]
	if !exists {
		lock = &sync.Mutex{}
		e.locks[gameID] = lock
	}
	e.mutex.Unlock()

	lock.Lock()
	return lock.Unlock
}

// CreateGame promotes a room into a running game. Players still waiting
// in the room are assigned turn order by join time and marked Playing.
func (e *Engine) CreateGame(roomID string) (*models.Game, error) {
	unlock := e.lobby.LockRoom(roomID)
	defer unlock()

	room, err := e.store.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomOpen && room.Status != models.RoomFull {
		return nil, gameerr.InvalidStatef("room %s cannot start a game in status %s", roomID, room.Status)
	}

	players, err := e.store.PlayersByRoom(roomID)
	if err != nil {
		return nil, err
	}
	var waiting []*models.Player
	for _, p := range players {
		if p.GameID == "" {
			waiting = append(waiting, p)
		}
	}
	if len(waiting) < 2 {
		return nil, gameerr.InvalidStatef("room %s needs at least 2 players to start", roomID)
	}
	sortByJoinTime(waiting)

	game := &models.Game{
		ID:               uuid.New().String(),
		RoomID:           roomID,
		Status:           models.GameInProgress,
		CurrentTurnIndex: 0,
		TurnPhase:        models.PhaseWaitingForDice,
		StartedAt:        time.Now(),
	}

	// The room row is the write contended with JoinRoom; committing it
	// first means a version conflict aborts before anything else moved.
	room.Status = models.RoomInGame
	if err := e.store.UpdateRoom(room); err != nil {
		return nil, err
	}
	if err := e.store.CreateGame(game); err != nil {
		return nil, err
	}
	for i, p := range waiting {
		p.GameID = game.ID
		p.TurnOrder = i
		p.Status = models.PlayerPlaying
		if err := e.store.UpdatePlayer(p); err != nil {
			return nil, err
		}
	}

	logger.Log.Infof("Room %s promoted to game %s with %d players", roomID, game.ID, len(waiting))

	if summary, err := e.lobby.Summary(roomID); err == nil {
		e.broadcaster.PublishToGroup(broadcast.LobbyGroup(roomID), broadcast.EventLobbyUpdated, summary)
	}
	e.publishState(game.ID)
	return game, nil
}

// RollAndMove resolves one dice roll for the current player.
func (e *Engine) RollAndMove(gameID, userID string) (*models.MoveResult, error) {
	unlock := e.lockGame(gameID)
	defer unlock()

	game, players, player, err := e.loadTurnContext(gameID, userID)
	if err != nil {
		return nil, err
	}
	if !e.turns.IsPlayersTurn(game, players, player.ID) {
		return nil, gameerr.Unauthorizedf("not your turn")
	}
	if game.TurnPhase != models.PhaseWaitingForDice {
		return nil, gameerr.InvalidStatef("dice already rolled, awaiting quiz answer")
	}

	b := e.boards.Generate(gameID)
	diceValue := e.dice.Roll()
	from := player.Position
	target := from + diceValue

	result := &models.MoveResult{
		DiceValue:    diceValue,
		FromPosition: from,
	}

	if target > b.Size() {
		// Overshoot: the token stays put and the turn passes.
		result.ToPosition = from
		result.FinalPosition = from
		result.Message = fmt.Sprintf("Rolled %d but the board ends at %d, stay at %d", diceValue, b.Size(), from)
		e.turns.AdvanceTurn(game, players)
		if err := e.commitMove(game, player, result); err != nil {
			return nil, err
		}
		e.announceMove(game, player, result)
		return result, nil
	}

	result.ToPosition = target
	player.Position = target

	hazard := b.HazardAt(target)
	switch hazard.Kind {
	case board.HazardLadder:
		player.Position = hazard.To
		result.FinalPosition = hazard.To
		result.SpecialEvent = SpecialLadder
		result.Message = fmt.Sprintf("Ladder! Up from %d to %d", target, hazard.To)
	case board.HazardSnake:
		player.Position = hazard.To
		result.FinalPosition = hazard.To
		result.SpecialEvent = SpecialSnake
		result.Message = fmt.Sprintf("Snake! Down from %d to %d", target, hazard.To)
	case board.HazardQuizSnake:
		// The move suspends on the snake head until the question is
		// answered; the turn does not advance.
		result.FinalPosition = target
		result.SpecialEvent = SpecialProfesor
		result.RequiresAnswer = true
		result.Question = &models.QuizQuestion{
			Profesor: hazard.Question.Profesor,
			Equation: hazard.Question.Equation,
			Options:  hazard.Question.Options,
		}
		result.Message = fmt.Sprintf("Profesor %s blocks the way!", hazard.Question.Profesor)
		game.TurnPhase = models.PhaseAwaitingQuizAnswer
	default:
		result.FinalPosition = target
		result.Message = "Normal move"
	}

	if player.Position >= b.Size() {
		e.finishWithWinner(game, player)
		result.IsWinner = true
		result.Message = "You won!"
	} else if !result.RequiresAnswer {
		e.turns.AdvanceTurn(game, players)
	}

	if err := e.commitMove(game, player, result); err != nil {
		return nil, err
	}
	if result.IsWinner {
		e.grantWin(player.UserID)
	}
	if result.RequiresAnswer {
		e.broadcaster.PublishToUser(userID, broadcast.EventReceiveQuizQuestion, result.Question)
	}
	e.announceMove(game, player, result)
	return result, nil
}

// AnswerQuizQuestion resolves a pending quiz gate. Only the player who
// triggered the question may answer; either outcome consumes the turn.
func (e *Engine) AnswerQuizQuestion(gameID, userID, answer string) (*models.MoveResult, error) {
	unlock := e.lockGame(gameID)
	defer unlock()

	game, players, player, err := e.loadTurnContext(gameID, userID)
	if err != nil {
		return nil, err
	}
	if game.TurnPhase != models.PhaseAwaitingQuizAnswer {
		return nil, gameerr.InvalidStatef("no quiz question is pending")
	}
	if !e.turns.IsPlayersTurn(game, players, player.ID) {
		return nil, gameerr.Unauthorizedf("the pending question belongs to another player")
	}

	b := e.boards.Generate(gameID)
	question, ok := b.QuestionAt(player.Position)
	if !ok {
		return nil, gameerr.InvalidStatef("no question at position %d", player.Position)
	}

	result := &models.MoveResult{
		FromPosition:  player.Position,
		ToPosition:    player.Position,
		FinalPosition: player.Position,
		SpecialEvent:  SpecialProfesor,
	}

	if b.ValidateAnswer(player.Position, answer) {
		// Correct answers hold the head position; there is no climb.
		result.Message = "Correct! You keep your position."
	} else {
		player.Position = question.Tail
		result.FinalPosition = question.Tail
		result.Message = fmt.Sprintf("Incorrect. The profesor sends you down to %d", question.Tail)
	}

	e.turns.AdvanceTurn(game, players)
	if err := e.commitMove(game, player, result); err != nil {
		return nil, err
	}
	e.announceMove(game, player, result)
	return result, nil
}

// Surrender removes a player from the running game. A no-op when the
// game is already over or the player already left the active set.
func (e *Engine) Surrender(gameID, userID string) error {
	unlock := e.lockGame(gameID)
	defer unlock()

	game, err := e.store.GetGame(gameID)
	if err != nil {
		return err
	}
	players, err := e.store.PlayersByGame(gameID)
	if err != nil {
		return err
	}
	player := findByUser(players, userID)
	if player == nil {
		return gameerr.NotFoundf("player for user %s not found in game %s", userID, gameID)
	}

	if game.Status == models.GameFinished {
		return nil
	}
	if player.Status == models.PlayerSurrendered || player.Status == models.PlayerWinner {
		return nil
	}

	wasCurrent := e.turns.IsPlayersTurn(game, players, player.ID)
	player.Status = models.PlayerSurrendered
	if wasCurrent {
		e.turns.AdvanceTurn(game, players)
	}

	var remaining []*models.Player
	for _, p := range players {
		if p.Status == models.PlayerPlaying {
			remaining = append(remaining, p)
		}
	}

	var winner *models.Player
	switch len(remaining) {
	case 1:
		winner = remaining[0]
		e.finishWithWinner(game, winner)
	case 0:
		// Both sides gave up near-simultaneously: finish with no winner.
		e.finish(game)
	}

	if err := e.store.UpdateGame(game); err != nil {
		return err
	}
	if err := e.store.UpdatePlayer(player); err != nil {
		return err
	}
	if winner != nil {
		if err := e.store.UpdatePlayer(winner); err != nil {
			return err
		}
	}

	if err := e.rewards.RecordPlayed(player.UserID); err != nil {
		logger.Log.Warnf("Recording played game for user %s failed: %v", player.UserID, err)
	}
	if winner != nil {
		e.grantWin(winner.UserID)
	}

	logger.Log.Infof("User %s surrendered in game %s", userID, gameID)

	e.broadcaster.PublishToGroup(broadcast.GameGroup(gameID), broadcast.EventPlayerSurrendered, map[string]any{
		"game_id":  gameID,
		"user_id":  userID,
		"username": e.username(userID),
	})
	e.publishState(gameID)
	if game.Status == models.GameFinished {
		e.announceFinished(game)
	}
	return nil
}

// State builds the full snapshot of a game.
func (e *Engine) State(gameID string) (*models.GameState, error) {
	game, err := e.store.GetGame(gameID)
	if err != nil {
		return nil, err
	}
	players, err := e.store.PlayersByGame(gameID)
	if err != nil {
		return nil, err
	}
	turn.SortByTurnOrder(players)

	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.UserID)
	}
	users, err := e.store.GetUsersByID(ids)
	if err != nil {
		return nil, err
	}

	var current *models.Player
	if game.Status == models.GameInProgress {
		current = e.turns.CurrentPlayer(game, players)
	}

	state := &models.GameState{
		GameID:           game.ID,
		RoomID:           game.RoomID,
		Status:           string(game.Status),
		CurrentTurnIndex: game.CurrentTurnIndex,
		TurnPhase:        string(game.TurnPhase),
		Players:          make([]models.PlayerState, 0, len(players)),
		Board:            e.boards.Generate(gameID).State(),
		WinnerPlayerID:   game.WinnerPlayerID,
	}
	if current != nil {
		state.CurrentPlayerID = current.ID
		if u, ok := users[current.UserID]; ok {
			state.CurrentPlayerName = u.Username
		}
	}
	for _, p := range players {
		ps := models.PlayerState{
			PlayerID:      p.ID,
			UserID:        p.UserID,
			Position:      p.Position,
			TurnOrder:     p.TurnOrder,
			Status:        string(p.Status),
			IsCurrentTurn: current != nil && current.ID == p.ID,
		}
		if u, ok := users[p.UserID]; ok {
			ps.Username = u.Username
		}
		if p.ID == game.WinnerPlayerID {
			state.WinnerName = ps.Username
		}
		state.Players = append(state.Players, ps)
	}
	return state, nil
}

// --- internals ---

// loadTurnContext fetches the game, its roster and the caller's player,
// enforcing the game-in-progress precondition shared by move operations.
func (e *Engine) loadTurnContext(gameID, userID string) (*models.Game, []*models.Player, *models.Player, error) {
	game, err := e.store.GetGame(gameID)
	if err != nil {
		return nil, nil, nil, err
	}
	if game.Status != models.GameInProgress {
		return nil, nil, nil, gameerr.InvalidStatef("game %s is not in progress", gameID)
	}
	players, err := e.store.PlayersByGame(gameID)
	if err != nil {
		return nil, nil, nil, err
	}
	player := findByUser(players, userID)
	if player == nil {
		return nil, nil, nil, gameerr.NotFoundf("player for user %s not found in game %s", userID, gameID)
	}
	return game, players, player, nil
}

// commitMove persists one resolved operation. The version-guarded game
// row goes first, so a concurrency conflict aborts before any other
// write and prior state survives untouched.
func (e *Engine) commitMove(game *models.Game, player *models.Player, result *models.MoveResult) error {
	if err := e.store.UpdateGame(game); err != nil {
		return err
	}
	if err := e.store.UpdatePlayer(player); err != nil {
		return err
	}
	move := &models.Move{
		ID:            uuid.New().String(),
		GameID:        game.ID,
		PlayerID:      player.ID,
		DiceValue:     result.DiceValue,
		FromPosition:  result.FromPosition,
		ToPosition:    result.ToPosition,
		FinalPosition: result.FinalPosition,
		SpecialEvent:  result.SpecialEvent,
		CreatedAt:     time.Now(),
	}
	return e.store.CreateMove(move)
}

func (e *Engine) finishWithWinner(game *models.Game, winner *models.Player) {
	winner.Status = models.PlayerWinner
	game.WinnerPlayerID = winner.ID
	e.finish(game)
}

func (e *Engine) finish(game *models.Game) {
	now := time.Now()
	game.Status = models.GameFinished
	game.FinishedAt = &now
}

func (e *Engine) grantWin(userID string) {
	if err := e.rewards.GrantWin(userID); err != nil {
		logger.Log.Warnf("Granting win reward to user %s failed: %v", userID, err)
	}
}

// announceMove publishes the committed move, the fresh snapshot and,
// on a terminal move, the single GameFinished event.
func (e *Engine) announceMove(game *models.Game, player *models.Player, result *models.MoveResult) {
	e.broadcaster.PublishToGroup(broadcast.GameGroup(game.ID), broadcast.EventMoveCompleted, map[string]any{
		"user_id":     player.UserID,
		"username":    e.username(player.UserID),
		"move_result": result,
	})
	e.publishState(game.ID)
	if game.Status == models.GameFinished {
		e.announceFinished(game)
	}
}

func (e *Engine) publishState(gameID string) {
	state, err := e.State(gameID)
	if err != nil {
		logger.Log.Errorf("Building state snapshot for game %s failed: %v", gameID, err)
		return
	}
	e.broadcaster.PublishToGroup(broadcast.GameGroup(gameID), broadcast.EventGameStateUpdate, state)
}

func (e *Engine) announceFinished(game *models.Game) {
	payload := map[string]any{
		"game_id":          game.ID,
		"winner_player_id": game.WinnerPlayerID,
	}
	if game.WinnerPlayerID != "" {
		if winner, err := e.store.GetPlayer(game.WinnerPlayerID); err == nil {
			payload["winner_name"] = e.username(winner.UserID)
		}
	}
	e.broadcaster.PublishToGroup(broadcast.GameGroup(game.ID), broadcast.EventGameFinished, payload)
}

func (e *Engine) username(userID string) string {
	if u, err := e.store.GetUser(userID); err == nil {
		return u.Username
	}
	return ""
}

func findByUser(players []*models.Player, userID string) *models.Player {
	for _, p := range players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func sortByJoinTime(players []*models.Player) {
	for i := 0; i < len(players); i++ {
		for j := i + 1; j < len(players); j++ {
			if players[j].JoinedAt.Before(players[i].JoinedAt) {
				players[i], players[j] = players[j], players[i]
			}
		}
	}
}
