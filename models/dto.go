// models/dto.go
package models

import (
	"time"
)

// RoomSummary is the lobby view of a room, player names in join order.
type RoomSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	MaxPlayers     int       `json:"max_players"`
	CurrentPlayers int       `json:"current_players"`
	IsPrivate      bool      `json:"is_private"`
	PlayerNames    []string  `json:"player_names"`
	GameID         string    `json:"game_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// PlayerState is one entry of a game snapshot, ordered by turn order.
type PlayerState struct {
	PlayerID      string `json:"player_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	Position      int    `json:"position"`
	TurnOrder     int    `json:"turn_order"`
	Status        string `json:"status"`
	IsCurrentTurn bool   `json:"is_current_turn"`
}

type SnakeSpan struct {
	Head    int  `json:"head"`
	Tail    int  `json:"tail"`
	HasQuiz bool `json:"has_quiz"`
}

type LadderSpan struct {
	Bottom int `json:"bottom"`
	Top    int `json:"top"`
}

type BoardState struct {
	Size    int          `json:"size"`
	Snakes  []SnakeSpan  `json:"snakes"`
	Ladders []LadderSpan `json:"ladders"`
}

// GameState is the full snapshot broadcast after every committed mutation.
type GameState struct {
	GameID            string        `json:"game_id"`
	RoomID            string        `json:"room_id"`
	Status            string        `json:"status"`
	CurrentTurnIndex  int           `json:"current_turn_index"`
	TurnPhase         string        `json:"turn_phase"`
	CurrentPlayerID   string        `json:"current_player_id,omitempty"`
	CurrentPlayerName string        `json:"current_player_name,omitempty"`
	Players           []PlayerState `json:"players"`
	Board             BoardState    `json:"board"`
	WinnerPlayerID    string        `json:"winner_player_id,omitempty"`
	WinnerName        string        `json:"winner_name,omitempty"`
}

// QuizQuestion is the client-facing view of a quiz hazard. The correct
// option never leaves the server.
type QuizQuestion struct {
	Profesor string            `json:"profesor"`
	Equation string            `json:"equation"`
	Options  map[string]string `json:"options"`
}

// MoveResult describes the outcome of one roll or quiz answer.
type MoveResult struct {
	DiceValue      int           `json:"dice_value"`
	FromPosition   int           `json:"from_position"`
	ToPosition     int           `json:"to_position"`
	FinalPosition  int           `json:"final_position"`
	SpecialEvent   string        `json:"special_event,omitempty"`
	RequiresAnswer bool          `json:"requires_answer"`
	Question       *QuizQuestion `json:"question,omitempty"`
	IsWinner       bool          `json:"is_winner"`
	Message        string        `json:"message"`
}

// EmoteMessage is a relay-only payload; it never touches game state.
type EmoteMessage struct {
	GameID   string    `json:"game_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	EmoteID  string    `json:"emote_id"`
	SentAt   time.Time `json:"sent_at"`
}

// UserStats is the reporting view served over the admin RPC endpoint.
type UserStats struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
	Coins       int64  `json:"coins"`
	TotalMoves  int    `json:"total_moves"`
}
