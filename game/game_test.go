package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/serpientes/gameserver/board"
	"github.com/serpientes/gameserver/dice"
	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/persistence"
	"github.com/serpientes/gameserver/turn"
)

// ScriptedRoller replays a fixed dice sequence.
type ScriptedRoller struct {
	rolls []int
	index int
}

func (r *ScriptedRoller) Roll() int {
	v := r.rolls[r.index%len(r.rolls)]
	r.index++
	return v
}

// MockBroadcaster records every published event name.
type MockBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (m *MockBroadcaster) PublishToGroup(group, event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockBroadcaster) PublishToUser(userID, event string, payload any) error {
	return m.PublishToGroup("", event, payload)
}

func (m *MockBroadcaster) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == event {
			n++
		}
	}
	return n
}

// MockRewards records economy calls.
type MockRewards struct {
	wins   []string
	played []string
}

func (m *MockRewards) GrantWin(userID string) error {
	m.wins = append(m.wins, userID)
	return nil
}

func (m *MockRewards) RecordPlayed(userID string) error {
	m.played = append(m.played, userID)
	return nil
}

// stubLobby serializes all rooms through one mutex.
type stubLobby struct {
	mu sync.Mutex
}

func (l *stubLobby) LockRoom(string) func() {
	l.mu.Lock()
	return l.mu.Unlock
}

func (l *stubLobby) Summary(roomID string) (*models.RoomSummary, error) {
	return &models.RoomSummary{ID: roomID}, nil
}

type fixture struct {
	engine      *Engine
	store       *persistence.MemoryStore
	broadcaster *MockBroadcaster
	rewards     *MockRewards
	game        *models.Game
	players     []*models.Player
}

// newFixture seeds a room with numPlayers waiting users, promotes it and
// returns the roster sorted by turn order. Player i plays for user "u<i+1>".
func newFixture(t *testing.T, numPlayers int, rolls ...int) *fixture {
	t.Helper()
	logger.InitNop()
	if len(rolls) == 0 {
		rolls = []int{1}
	}

	store := persistence.NewMemoryStore()
	broadcaster := &MockBroadcaster{}
	rewards := &MockRewards{}
	engine := NewEngine(store, board.NewGenerator(board.DefaultSize), &ScriptedRoller{rolls: rolls}, broadcaster, rewards, &stubLobby{})

	roomID := uuid.New().String()
	if err := store.CreateRoom(&models.Room{
		ID: roomID, Name: "sala", MaxPlayers: 6, CurrentPlayers: numPlayers,
		Status: models.RoomFull, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Seeding room failed: %v", err)
	}

	base := time.Now()
	for i := 0; i < numPlayers; i++ {
		uid := userID(i)
		if err := store.CreateUser(&models.User{ID: uid, Username: "name-" + uid}); err != nil {
			t.Fatalf("Seeding user failed: %v", err)
		}
		if err := store.CreatePlayer(&models.Player{
			ID: uuid.New().String(), UserID: uid, RoomID: roomID,
			Status: models.PlayerWaiting, JoinedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Seeding player failed: %v", err)
		}
	}

	game, err := engine.CreateGame(roomID)
	if err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
	players, err := store.PlayersByGame(game.ID)
	if err != nil {
		t.Fatalf("Loading roster failed: %v", err)
	}
	turn.SortByTurnOrder(players)

	return &fixture{engine: engine, store: store, broadcaster: broadcaster, rewards: rewards, game: game, players: players}
}

func userID(i int) string {
	return "u" + string(rune('1'+i))
}

// setPosition moves a player's token directly in the store.
func (f *fixture) setPosition(t *testing.T, playerID string, position int) {
	t.Helper()
	p, err := f.store.GetPlayer(playerID)
	if err != nil {
		t.Fatalf("Loading player failed: %v", err)
	}
	p.Position = position
	if err := f.store.UpdatePlayer(p); err != nil {
		t.Fatalf("Moving player failed: %v", err)
	}
}

func (f *fixture) freshGame(t *testing.T) *models.Game {
	t.Helper()
	g, err := f.store.GetGame(f.game.ID)
	if err != nil {
		t.Fatalf("Loading game failed: %v", err)
	}
	return g
}

func TestCreateGame_PromotesRoom(t *testing.T) {
	f := newFixture(t, 3)

	if f.game.Status != models.GameInProgress {
		t.Errorf("Expected InProgress, got %s", f.game.Status)
	}
	if f.game.TurnPhase != models.PhaseWaitingForDice {
		t.Errorf("Expected WaitingForDice, got %s", f.game.TurnPhase)
	}
	room, _ := f.store.GetRoom(f.game.RoomID)
	if room.Status != models.RoomInGame {
		t.Errorf("Promoted room should be InGame, got %s", room.Status)
	}
	for i, p := range f.players {
		if p.TurnOrder != i {
			t.Errorf("Player %d has turn order %d", i, p.TurnOrder)
		}
		if p.Status != models.PlayerPlaying {
			t.Errorf("Player %d should be Playing, got %s", i, p.Status)
		}
		if p.UserID != userID(i) {
			t.Errorf("Turn order should follow join time, slot %d got %s", i, p.UserID)
		}
	}
}

func TestCreateGame_NeedsTwoPlayers(t *testing.T) {
	logger.InitNop()
	store := persistence.NewMemoryStore()
	engine := NewEngine(store, board.NewGenerator(0), dice.NewSeeded(1), &MockBroadcaster{}, &MockRewards{}, &stubLobby{})

	store.CreateUser(&models.User{ID: "u1", Username: "solo"})
	store.CreateRoom(&models.Room{ID: "r1", Name: "sala", MaxPlayers: 4, Status: models.RoomOpen, CreatedAt: time.Now()})
	store.CreatePlayer(&models.Player{ID: "p1", UserID: "u1", RoomID: "r1", Status: models.PlayerWaiting, JoinedAt: time.Now()})

	_, err := engine.CreateGame("r1")
	if gameerr.KindOf(err) != gameerr.KindInvalidState {
		t.Errorf("Expected InvalidState for lone player, got %v", err)
	}
}

func TestCreateGame_RoomAlreadyInGame(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.engine.CreateGame(f.game.RoomID)
	if gameerr.KindOf(err) != gameerr.KindInvalidState {
		t.Errorf("Expected InvalidState for promoted room, got %v", err)
	}
}

func TestRollAndMove_NormalMove(t *testing.T) {
	f := newFixture(t, 2, 3)

	result, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID)
	if err != nil {
		t.Fatalf("RollAndMove failed: %v", err)
	}
	if result.DiceValue != 3 || result.FinalPosition != 3 || result.SpecialEvent != "" {
		t.Errorf("Unexpected result: %+v", result)
	}

	game := f.freshGame(t)
	if game.CurrentTurnIndex != 1 {
		t.Errorf("Turn should pass to player 1, got index %d", game.CurrentTurnIndex)
	}
	if f.store.MoveCount(f.game.ID) != 1 {
		t.Errorf("Expected 1 recorded move, got %d", f.store.MoveCount(f.game.ID))
	}
}

func TestRollAndMove_NotYourTurn(t *testing.T) {
	f := newFixture(t, 2, 3)

	_, err := f.engine.RollAndMove(f.game.ID, f.players[1].UserID)
	if gameerr.KindOf(err) != gameerr.KindUnauthorized {
		t.Errorf("Expected Unauthorized, got %v", err)
	}
}

func TestRollAndMove_UnknownGame(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.engine.RollAndMove("missing", f.players[0].UserID)
	if gameerr.KindOf(err) != gameerr.KindNotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}

func TestRollAndMove_OvershootStaysPut(t *testing.T) {
	f := newFixture(t, 2, 5)
	f.setPosition(t, f.players[0].ID, 98)

	result, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID)
	if err != nil {
		t.Fatalf("RollAndMove failed: %v", err)
	}
	if result.FinalPosition != 98 || result.IsWinner {
		t.Errorf("Overshoot should hold position: %+v", result)
	}

	game := f.freshGame(t)
	if game.CurrentTurnIndex != 1 {
		t.Error("Overshoot should still consume the turn")
	}
	if f.store.MoveCount(f.game.ID) != 1 {
		t.Error("Overshoot should still record a move")
	}
}

func TestRollAndMove_ExactLandingWins(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 97)

	result, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID)
	if err != nil {
		t.Fatalf("RollAndMove failed: %v", err)
	}
	if !result.IsWinner || result.FinalPosition != 100 {
		t.Errorf("Expected a winning move, got %+v", result)
	}

	game := f.freshGame(t)
	if game.Status != models.GameFinished {
		t.Errorf("Game should be Finished, got %s", game.Status)
	}
	if game.WinnerPlayerID != f.players[0].ID {
		t.Errorf("Wrong winner recorded: %s", game.WinnerPlayerID)
	}
	if game.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
	winner, _ := f.store.GetPlayer(f.players[0].ID)
	if winner.Status != models.PlayerWinner {
		t.Errorf("Winner status should be Winner, got %s", winner.Status)
	}
	if len(f.rewards.wins) != 1 || f.rewards.wins[0] != f.players[0].UserID {
		t.Errorf("Winner should be rewarded once, got %v", f.rewards.wins)
	}
	if n := f.broadcaster.Count("GameFinished"); n != 1 {
		t.Errorf("GameFinished should fire exactly once, got %d", n)
	}

	// The finished game rejects further rolls.
	_, err = f.engine.RollAndMove(f.game.ID, f.players[1].UserID)
	if gameerr.KindOf(err) != gameerr.KindInvalidState {
		t.Errorf("Rolling after the end should fail with InvalidState, got %v", err)
	}
}

func TestRollAndMove_LadderClimbs(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 10)

	result, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID)
	if err != nil {
		t.Fatalf("RollAndMove failed: %v", err)
	}
	if result.ToPosition != 13 || result.FinalPosition != 28 || result.SpecialEvent != SpecialLadder {
		t.Errorf("Expected ladder 13 to 28, got %+v", result)
	}
}

func TestRollAndMove_QuizSnakeSuspendsTurn(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 20)

	result, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID)
	if err != nil {
		t.Fatalf("RollAndMove failed: %v", err)
	}
	if !result.RequiresAnswer || result.SpecialEvent != SpecialProfesor {
		t.Fatalf("Landing on 23 should raise a question, got %+v", result)
	}
	if result.Question == nil || result.Question.Profesor != "Huanca" {
		t.Errorf("Unexpected question: %+v", result.Question)
	}
	if result.FinalPosition != 23 {
		t.Errorf("Token should sit on the snake head, got %d", result.FinalPosition)
	}

	game := f.freshGame(t)
	if game.TurnPhase != models.PhaseAwaitingQuizAnswer {
		t.Errorf("Phase should be AwaitingQuizAnswer, got %s", game.TurnPhase)
	}
	if game.CurrentTurnIndex != 0 {
		t.Error("Turn must not advance while a question is pending")
	}
	if f.broadcaster.Count("ReceiveQuizQuestion") != 1 {
		t.Error("Question should be delivered to the roller")
	}

	// Rolling again while the question is pending is rejected.
	if _, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID); gameerr.KindOf(err) != gameerr.KindInvalidState {
		t.Errorf("Re-roll during quiz should fail with InvalidState, got %v", err)
	}
}

func TestAnswerQuiz_CorrectHoldsPosition(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 20)
	f.engine.RollAndMove(f.game.ID, f.players[0].UserID)

	result, err := f.engine.AnswerQuizQuestion(f.game.ID, f.players[0].UserID, "B")
	if err != nil {
		t.Fatalf("AnswerQuizQuestion failed: %v", err)
	}
	if result.FinalPosition != 23 {
		t.Errorf("Correct answer should hold the head position, got %d", result.FinalPosition)
	}

	game := f.freshGame(t)
	if game.TurnPhase != models.PhaseWaitingForDice {
		t.Errorf("Phase should reset, got %s", game.TurnPhase)
	}
	if game.CurrentTurnIndex != 1 {
		t.Error("Answering should consume the turn")
	}
}

func TestAnswerQuiz_IncorrectSlidesDown(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 20)
	f.engine.RollAndMove(f.game.ID, f.players[0].UserID)

	result, err := f.engine.AnswerQuizQuestion(f.game.ID, f.players[0].UserID, "A")
	if err != nil {
		t.Fatalf("AnswerQuizQuestion failed: %v", err)
	}
	if result.FinalPosition != 4 {
		t.Errorf("Wrong answer should slide to the tail 4, got %d", result.FinalPosition)
	}

	moved, _ := f.store.GetPlayer(f.players[0].ID)
	if moved.Position != 4 {
		t.Errorf("Persisted position should be 4, got %d", moved.Position)
	}
	game := f.freshGame(t)
	if game.CurrentTurnIndex != 1 {
		t.Error("Answering should consume the turn")
	}
}

func TestAnswerQuiz_OnlyTheRollerMayAnswer(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 20)
	f.engine.RollAndMove(f.game.ID, f.players[0].UserID)

	_, err := f.engine.AnswerQuizQuestion(f.game.ID, f.players[1].UserID, "B")
	if gameerr.KindOf(err) != gameerr.KindUnauthorized {
		t.Errorf("Expected Unauthorized, got %v", err)
	}
}

func TestAnswerQuiz_NoPendingQuestion(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.engine.AnswerQuizQuestion(f.game.ID, f.players[0].UserID, "B")
	if gameerr.KindOf(err) != gameerr.KindInvalidState {
		t.Errorf("Expected InvalidState, got %v", err)
	}
}

func TestSurrender_PassesTurn(t *testing.T) {
	f := newFixture(t, 3)

	if err := f.engine.Surrender(f.game.ID, f.players[0].UserID); err != nil {
		t.Fatalf("Surrender failed: %v", err)
	}

	quitter, _ := f.store.GetPlayer(f.players[0].ID)
	if quitter.Status != models.PlayerSurrendered {
		t.Errorf("Expected Surrendered, got %s", quitter.Status)
	}
	game := f.freshGame(t)
	if game.CurrentTurnIndex != 1 {
		t.Errorf("Turn should pass to the next player, got index %d", game.CurrentTurnIndex)
	}
	if game.Status != models.GameInProgress {
		t.Errorf("Two opponents remain, game should continue, got %s", game.Status)
	}
	if len(f.rewards.played) != 1 {
		t.Errorf("Surrender should record a played game, got %v", f.rewards.played)
	}
}

func TestSurrender_SkipsSurrenderedOnLaterTurns(t *testing.T) {
	f := newFixture(t, 3, 1)
	f.engine.Surrender(f.game.ID, f.players[1].UserID)

	// Player 0 rolls; the turn must skip the surrendered player 1.
	if _, err := f.engine.RollAndMove(f.game.ID, f.players[0].UserID); err != nil {
		t.Fatalf("RollAndMove failed: %v", err)
	}
	game := f.freshGame(t)
	if game.CurrentTurnIndex != 2 {
		t.Errorf("Turn should skip to player 2, got index %d", game.CurrentTurnIndex)
	}
}

func TestSurrender_LastOpponentWins(t *testing.T) {
	f := newFixture(t, 2)

	if err := f.engine.Surrender(f.game.ID, f.players[0].UserID); err != nil {
		t.Fatalf("Surrender failed: %v", err)
	}

	game := f.freshGame(t)
	if game.Status != models.GameFinished {
		t.Fatalf("Game should be Finished, got %s", game.Status)
	}
	if game.WinnerPlayerID != f.players[1].ID {
		t.Errorf("Remaining player should win, got %s", game.WinnerPlayerID)
	}
	winner, _ := f.store.GetPlayer(f.players[1].ID)
	if winner.Status != models.PlayerWinner {
		t.Errorf("Winner status should be Winner, got %s", winner.Status)
	}
	if len(f.rewards.wins) != 1 || f.rewards.wins[0] != f.players[1].UserID {
		t.Errorf("Winner should be rewarded, got %v", f.rewards.wins)
	}
	if n := f.broadcaster.Count("GameFinished"); n != 1 {
		t.Errorf("GameFinished should fire exactly once, got %d", n)
	}
}

func TestSurrender_Idempotent(t *testing.T) {
	f := newFixture(t, 2)

	f.engine.Surrender(f.game.ID, f.players[0].UserID)
	if err := f.engine.Surrender(f.game.ID, f.players[0].UserID); err != nil {
		t.Errorf("Repeated surrender should be a no-op, got %v", err)
	}
	if err := f.engine.Surrender(f.game.ID, f.players[1].UserID); err != nil {
		t.Errorf("Surrender after the end should be a no-op, got %v", err)
	}
	if n := f.broadcaster.Count("GameFinished"); n != 1 {
		t.Errorf("GameFinished should fire exactly once, got %d", n)
	}
	if len(f.rewards.wins) != 1 {
		t.Errorf("Winner should be rewarded exactly once, got %v", f.rewards.wins)
	}
}

func TestSurrender_DuringQuizReleasesPhase(t *testing.T) {
	f := newFixture(t, 2, 3)
	f.setPosition(t, f.players[0].ID, 20)
	f.engine.RollAndMove(f.game.ID, f.players[0].UserID)

	if err := f.engine.Surrender(f.game.ID, f.players[0].UserID); err != nil {
		t.Fatalf("Surrender failed: %v", err)
	}
	game := f.freshGame(t)
	if game.Status != models.GameFinished {
		t.Errorf("Last opponent should win, got %s", game.Status)
	}
	if game.TurnPhase != models.PhaseWaitingForDice {
		t.Errorf("Pending quiz phase should be released, got %s", game.TurnPhase)
	}
}

func TestState_Snapshot(t *testing.T) {
	f := newFixture(t, 2)

	state, err := f.engine.State(f.game.ID)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.GameID != f.game.ID || state.Status != string(models.GameInProgress) {
		t.Errorf("Unexpected snapshot header: %+v", state)
	}
	if len(state.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(state.Players))
	}
	if !state.Players[0].IsCurrentTurn || state.Players[1].IsCurrentTurn {
		t.Error("Player 0 should hold the first turn")
	}
	if state.CurrentPlayerName != "name-u1" {
		t.Errorf("Unexpected current player name: %s", state.CurrentPlayerName)
	}
	if state.Board.Size != 100 || len(state.Board.Snakes) != 10 || len(state.Board.Ladders) != 7 {
		t.Errorf("Unexpected board layout: %+v", state.Board)
	}
	for _, s := range state.Board.Snakes {
		if !s.HasQuiz {
			t.Errorf("Every snake is quiz-gated, head %d is not", s.Head)
		}
	}
}
