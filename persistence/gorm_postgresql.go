// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/models"
)

// GormStore is the PostgreSQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Player{},
		&models.Game{},
		&models.Move{},
	)
}

// Transaction runs fn inside a database transaction. Used by the reward
// service for multi-row coin grants.
func (s *GormStore) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

func (s *GormStore) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

func (s *GormStore) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gameerr.NotFoundf("user %s not found", id)
		}
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) UpdateUser(user *models.User) error {
	res := s.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"username":     user.Username,
			"games_played": user.GamesPlayed,
			"games_won":    user.GamesWon,
			"coins":        user.Coins,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gameerr.NotFoundf("user %s not found", user.ID)
	}
	return nil
}

func (s *GormStore) GetUsersByID(ids []string) (map[string]*models.User, error) {
	var users []models.User
	if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*models.User, len(users))
	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

func (s *GormStore) CreateRoom(room *models.Room) error {
	return s.db.Create(room).Error
}

func (s *GormStore) GetRoom(id string) (*models.Room, error) {
	var room models.Room
	if err := s.db.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gameerr.NotFoundf("room %s not found", id)
		}
		return nil, err
	}
	return &room, nil
}

// UpdateRoom writes the room guarded by its version token.
func (s *GormStore) UpdateRoom(room *models.Room) error {
	res := s.db.Model(&models.Room{}).
		Where("id = ? AND version = ?", room.ID, room.Version).
		Updates(map[string]any{
			"name":            room.Name,
			"max_players":     room.MaxPlayers,
			"current_players": room.CurrentPlayers,
			"status":          room.Status,
			"is_private":      room.IsPrivate,
			"access_code":     room.AccessCode,
			"creator_user_id": room.CreatorUserID,
			"version":         room.Version + 1,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.versionMismatch(&models.Room{}, room.ID, "room")
	}
	room.Version++
	return nil
}

func (s *GormStore) ListRoomsByStatus(statuses ...models.RoomStatus) ([]*models.Room, error) {
	var rooms []*models.Room
	if err := s.db.Where("status IN ?", statuses).Order("created_at").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *GormStore) CreatePlayer(player *models.Player) error {
	return s.db.Create(player).Error
}

func (s *GormStore) GetPlayer(id string) (*models.Player, error) {
	var player models.Player
	if err := s.db.First(&player, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gameerr.NotFoundf("player %s not found", id)
		}
		return nil, err
	}
	return &player, nil
}

func (s *GormStore) UpdatePlayer(player *models.Player) error {
	res := s.db.Model(&models.Player{}).
		Where("id = ?", player.ID).
		Updates(map[string]any{
			"room_id":    player.RoomID,
			"game_id":    player.GameID,
			"position":   player.Position,
			"turn_order": player.TurnOrder,
			"status":     player.Status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gameerr.NotFoundf("player %s not found", player.ID)
	}
	return nil
}

func (s *GormStore) PlayersByRoom(roomID string) ([]*models.Player, error) {
	var players []*models.Player
	if err := s.db.Where("room_id = ?", roomID).Order("joined_at").Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

func (s *GormStore) PlayersByGame(gameID string) ([]*models.Player, error) {
	var players []*models.Player
	if err := s.db.Where("game_id = ?", gameID).Order("turn_order").Find(&players).Error; err != nil {
		return nil, err
	}
	return players, nil
}

func (s *GormStore) PlayerByGameAndUser(gameID, userID string) (*models.Player, error) {
	var player models.Player
	err := s.db.Where("game_id = ? AND user_id = ?", gameID, userID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gameerr.NotFoundf("player for user %s not found in game %s", userID, gameID)
		}
		return nil, err
	}
	return &player, nil
}

func (s *GormStore) CreateGame(game *models.Game) error {
	return s.db.Create(game).Error
}

func (s *GormStore) GetGame(id string) (*models.Game, error) {
	var game models.Game
	if err := s.db.First(&game, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gameerr.NotFoundf("game %s not found", id)
		}
		return nil, err
	}
	return &game, nil
}

func (s *GormStore) GameByRoom(roomID string) (*models.Game, error) {
	var game models.Game
	err := s.db.Where("room_id = ?", roomID).Order("started_at DESC").First(&game).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gameerr.NotFoundf("no game for room %s", roomID)
		}
		return nil, err
	}
	return &game, nil
}

// UpdateGame writes the game guarded by its version token.
func (s *GormStore) UpdateGame(game *models.Game) error {
	res := s.db.Model(&models.Game{}).
		Where("id = ? AND version = ?", game.ID, game.Version).
		Updates(map[string]any{
			"status":             game.Status,
			"current_turn_index": game.CurrentTurnIndex,
			"turn_phase":         game.TurnPhase,
			"winner_player_id":   game.WinnerPlayerID,
			"finished_at":        game.FinishedAt,
			"version":            game.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.versionMismatch(&models.Game{}, game.ID, "game")
	}
	game.Version++
	return nil
}

func (s *GormStore) CreateMove(move *models.Move) error {
	return s.db.Create(move).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// versionMismatch distinguishes a missing row from a stale version, so
// callers get NotFound and Conflict as separate failures.
func (s *GormStore) versionMismatch(model any, id, label string) error {
	var count int64
	if err := s.db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gameerr.NotFoundf("%s %s not found", label, id)
	}
	return gameerr.Conflictf("%s %s was modified concurrently", label, id)
}
