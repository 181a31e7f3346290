// persistence/interface.go
package persistence

// Store is the durable gateway for rooms, games and players. Fetches
// fail with a NotFound error when the id is absent. Updates check the
// entity's optimistic version token and fail with a Conflict error on a
// concurrent-modification mismatch; on success the version is
// incremented both in the store and on the passed struct.

import (
	"github.com/serpientes/gameserver/models"
)

type Store interface {
	CreateUser(user *models.User) error
	GetUser(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	// GetUsersByID resolves a batch of user ids; missing ids are
	// simply absent from the result map.
	GetUsersByID(ids []string) (map[string]*models.User, error)

	CreateRoom(room *models.Room) error
	GetRoom(id string) (*models.Room, error)
	UpdateRoom(room *models.Room) error
	ListRoomsByStatus(statuses ...models.RoomStatus) ([]*models.Room, error)

	CreatePlayer(player *models.Player) error
	GetPlayer(id string) (*models.Player, error)
	UpdatePlayer(player *models.Player) error
	PlayersByRoom(roomID string) ([]*models.Player, error)
	PlayersByGame(gameID string) ([]*models.Player, error)
	PlayerByGameAndUser(gameID, userID string) (*models.Player, error)

	CreateGame(game *models.Game) error
	GetGame(id string) (*models.Game, error)
	GameByRoom(roomID string) (*models.Game, error)
	UpdateGame(game *models.Game) error

	CreateMove(move *models.Move) error

	Close() error
}
