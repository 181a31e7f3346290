// models/models.go
package models

import (
	"time"
)

type RoomStatus string

const (
	RoomOpen   RoomStatus = "Open"
	RoomFull   RoomStatus = "Full"
	RoomInGame RoomStatus = "InGame"
	RoomClosed RoomStatus = "Closed"
)

type PlayerStatus string

const (
	PlayerWaiting     PlayerStatus = "Waiting"
	PlayerPlaying     PlayerStatus = "Playing"
	PlayerSurrendered PlayerStatus = "Surrendered"
	PlayerWinner      PlayerStatus = "Winner"
)

type GameStatus string

const (
	GameWaitingForPlayers GameStatus = "WaitingForPlayers"
	GameInProgress        GameStatus = "InProgress"
	GameFinished          GameStatus = "Finished"
)

type TurnPhase string

const (
	PhaseWaitingForDice     TurnPhase = "WaitingForDice"
	PhaseAwaitingQuizAnswer TurnPhase = "AwaitingQuizAnswer"
)

// User is an account record. Authentication lives outside this server;
// the user id arrives as trusted input on each connection.
type User struct {
	ID          string `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;not null"`
	GamesPlayed int    `gorm:"default:0"`
	GamesWon    int    `gorm:"default:0"`
	Coins       int64  `gorm:"default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Room is a lobby waiting to become a game.
type Room struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	MaxPlayers     int    `gorm:"not null"`
	CurrentPlayers int    `gorm:"default:0"`
	Status         RoomStatus `gorm:"index;not null"`
	IsPrivate      bool
	AccessCode     string
	CreatorUserID  string `gorm:"index"`
	// Version is the optimistic concurrency token, checked and
	// incremented on every update.
	Version   int64 `gorm:"default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Player binds a user to a room and, once the room is promoted, to a game.
// RoomID stays set after promotion; GameID is empty until then.
type Player struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index;not null"`
	RoomID    string `gorm:"index"`
	GameID    string `gorm:"index"`
	Position  int    `gorm:"default:0"`
	TurnOrder int
	Status    PlayerStatus `gorm:"not null"`
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// Game is the authoritative session record.
type Game struct {
	ID               string `gorm:"primaryKey"`
	RoomID           string `gorm:"index;not null"`
	Status           GameStatus `gorm:"index;not null"`
	CurrentTurnIndex int
	TurnPhase        TurnPhase `gorm:"not null"`
	WinnerPlayerID   string
	Version          int64 `gorm:"default:0"`
	StartedAt        time.Time
	FinishedAt       *time.Time
}

// Move is an audit row for every resolved dice roll or quiz answer.
type Move struct {
	ID            string `gorm:"primaryKey"`
	GameID        string `gorm:"index;not null"`
	PlayerID      string `gorm:"index;not null"`
	DiceValue     int
	FromPosition  int
	ToPosition    int
	FinalPosition int
	SpecialEvent  string
	CreatedAt     time.Time
}
