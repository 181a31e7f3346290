// persistence/memory.go
package persistence

import (
	"sync"

	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/models"
)

// MemoryStore is an in-process Store used by tests and local runs. It
// enforces the same NotFound and optimistic-version semantics as the
// database-backed store, and hands out copies so callers never share
// mutable state with it.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	rooms   map[string]*models.Room
	players map[string]*models.Player
	games   map[string]*models.Game
	moves   map[string]*models.Move
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*models.User),
		rooms:   make(map[string]*models.Room),
		players: make(map[string]*models.Player),
		games:   make(map[string]*models.Game),
		moves:   make(map[string]*models.Move),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyRoom(r *models.Room) *models.Room {
	c := *r
	return &c
}

func copyPlayer(p *models.Player) *models.Player {
	c := *p
	return &c
}

func copyGame(g *models.Game) *models.Game {
	c := *g
	if g.FinishedAt != nil {
		t := *g.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func (s *MemoryStore) CreateUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; exists {
		return gameerr.Conflictf("user %s already exists", user.ID)
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, gameerr.NotFoundf("user %s not found", id)
	}
	return copyUser(u), nil
}

func (s *MemoryStore) UpdateUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return gameerr.NotFoundf("user %s not found", user.ID)
	}
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *MemoryStore) GetUsersByID(ids []string) (map[string]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result[id] = copyUser(u)
		}
	}
	return result, nil
}

func (s *MemoryStore) CreateRoom(room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		return gameerr.Conflictf("room %s already exists", room.ID)
	}
	s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (s *MemoryStore) GetRoom(id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, gameerr.NotFoundf("room %s not found", id)
	}
	return copyRoom(r), nil
}

func (s *MemoryStore) UpdateRoom(room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rooms[room.ID]
	if !ok {
		return gameerr.NotFoundf("room %s not found", room.ID)
	}
	if stored.Version != room.Version {
		return gameerr.Conflictf("room %s was modified concurrently", room.ID)
	}
	room.Version++
	s.rooms[room.ID] = copyRoom(room)
	return nil
}

func (s *MemoryStore) ListRoomsByStatus(statuses ...models.RoomStatus) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Room
	for _, r := range s.rooms {
		for _, st := range statuses {
			if r.Status == st {
				result = append(result, copyRoom(r))
				break
			}
		}
	}
	return result, nil
}

func (s *MemoryStore) CreatePlayer(player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.players[player.ID]; exists {
		return gameerr.Conflictf("player %s already exists", player.ID)
	}
	s.players[player.ID] = copyPlayer(player)
	return nil
}

func (s *MemoryStore) GetPlayer(id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return nil, gameerr.NotFoundf("player %s not found", id)
	}
	return copyPlayer(p), nil
}

func (s *MemoryStore) UpdatePlayer(player *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; !ok {
		return gameerr.NotFoundf("player %s not found", player.ID)
	}
	s.players[player.ID] = copyPlayer(player)
	return nil
}

func (s *MemoryStore) PlayersByRoom(roomID string) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Player
	for _, p := range s.players {
		if p.RoomID == roomID {
			result = append(result, copyPlayer(p))
		}
	}
	return result, nil
}

func (s *MemoryStore) PlayersByGame(gameID string) ([]*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			result = append(result, copyPlayer(p))
		}
	}
	return result, nil
}

func (s *MemoryStore) PlayerByGameAndUser(gameID, userID string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.GameID == gameID && p.UserID == userID {
			return copyPlayer(p), nil
		}
	}
	return nil, gameerr.NotFoundf("player for user %s not found in game %s", userID, gameID)
}

func (s *MemoryStore) CreateGame(game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[game.ID]; exists {
		return gameerr.Conflictf("game %s already exists", game.ID)
	}
	s.games[game.ID] = copyGame(game)
	return nil
}

func (s *MemoryStore) GetGame(id string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, gameerr.NotFoundf("game %s not found", id)
	}
	return copyGame(g), nil
}

func (s *MemoryStore) GameByRoom(roomID string) (*models.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.games {
		if g.RoomID == roomID {
			return copyGame(g), nil
		}
	}
	return nil, gameerr.NotFoundf("no game for room %s", roomID)
}

func (s *MemoryStore) UpdateGame(game *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.games[game.ID]
	if !ok {
		return gameerr.NotFoundf("game %s not found", game.ID)
	}
	if stored.Version != game.Version {
		return gameerr.Conflictf("game %s was modified concurrently", game.ID)
	}
	game.Version++
	s.games[game.ID] = copyGame(game)
	return nil
}

func (s *MemoryStore) CreateMove(move *models.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *move
	s.moves[move.ID] = &c
	return nil
}

// MoveCount reports the number of recorded moves for a game. Test helper.
func (s *MemoryStore) MoveCount(gameID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.moves {
		if m.GameID == gameID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) Close() error {
	return nil
}
