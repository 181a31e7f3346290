// room/room.go
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serpientes/gameserver/broadcast"
	"github.com/serpientes/gameserver/gameerr"
	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/models"
	"github.com/serpientes/gameserver/persistence"
)

const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Manager is the lobby state machine: room creation, capacity- and
// privacy-gated joining, listing, and the stale-room sweep.
//
// Joins against the same room are serialized through a per-room mutex;
// cross-manager writers (the game engine promoting a room) are caught
// by the room's optimistic version token.
type Manager struct {
	store       persistence.Store
	broadcaster broadcast.Broadcaster

	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store persistence.Store, broadcaster broadcast.Broadcaster) *Manager {
	return &Manager{
		store:       store,
		broadcaster: broadcaster,
		locks:       make(map[string]*sync.Mutex),
	}
}

// LockRoom acquires the room's exclusion scope and returns the release
// function. Exported so the game engine can serialize room promotion
// against concurrent joins.
func (m *Manager) LockRoom(roomID string) func() {
	m.mutex.Lock()
	lock, exists := m.locks[roomID]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[roomID] = lock
	}
	m.mutex.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (m *Manager) releaseLock(roomID string) {
	m.mutex.Lock()
	delete(m.locks, roomID)
	m.mutex.Unlock()
}

// CreateRoom opens a new lobby.
func (m *Manager) CreateRoom(name string, maxPlayers int, creatorUserID string, isPrivate bool, accessCode string) (*models.Room, error) {
	if name == "" {
		return nil, gameerr.Validationf("room name must not be empty")
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayers {
		return nil, gameerr.Validationf("max players must be between %d and %d", MinPlayers, MaxPlayers)
	}
	if isPrivate && accessCode == "" {
		return nil, gameerr.Validationf("access code is required for private rooms")
	}
	if _, err := m.store.GetUser(creatorUserID); err != nil {
		return nil, err
	}
	if !isPrivate {
		accessCode = ""
	}

	room := &models.Room{
		ID:            uuid.New().String(),
		Name:          name,
		MaxPlayers:    maxPlayers,
		Status:        models.RoomOpen,
		IsPrivate:     isPrivate,
		AccessCode:    accessCode,
		CreatorUserID: creatorUserID,
		CreatedAt:     time.Now(),
	}
	if err := m.store.CreateRoom(room); err != nil {
		return nil, err
	}

	logger.Log.Infof("User %s created room %s (%s)", creatorUserID, room.ID, room.Name)
	return room, nil
}

// JoinRoom adds a user to a room as a waiting player.
func (m *Manager) JoinRoom(roomID, userID, accessCode string) (*models.Player, error) {
	unlock := m.LockRoom(roomID)
	defer unlock()

	room, err := m.store.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomOpen && room.Status != models.RoomFull {
		return nil, gameerr.InvalidStatef("room %s is not open for joining", roomID)
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return nil, gameerr.Conflictf("room %s is full", roomID)
	}

	players, err := m.store.PlayersByRoom(roomID)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if p.UserID == userID && p.GameID == "" {
			return nil, gameerr.Conflictf("user %s already joined room %s", userID, roomID)
		}
	}

	if _, err := m.store.GetUser(userID); err != nil {
		return nil, err
	}

	if room.IsPrivate && userID != room.CreatorUserID {
		if accessCode == "" || accessCode != room.AccessCode {
			return nil, gameerr.Unauthorizedf("invalid access code for room %s", roomID)
		}
	}

	player := &models.Player{
		ID:        uuid.New().String(),
		UserID:    userID,
		RoomID:    roomID,
		Position:  0,
		TurnOrder: room.CurrentPlayers,
		Status:    models.PlayerWaiting,
		JoinedAt:  time.Now(),
	}

	// The room row is the contended write; committing it first keeps a
	// version conflict from leaving a dangling player behind.
	room.CurrentPlayers++
	if room.CurrentPlayers >= room.MaxPlayers {
		room.Status = models.RoomFull
	}
	if err := m.store.UpdateRoom(room); err != nil {
		return nil, err
	}
	if err := m.store.CreatePlayer(player); err != nil {
		return nil, err
	}

	logger.Log.Infof("User %s joined room %s (%d/%d)", userID, roomID, room.CurrentPlayers, room.MaxPlayers)

	if summary, err := m.Summary(roomID); err == nil {
		m.broadcaster.PublishToGroup(broadcast.LobbyGroup(roomID), broadcast.EventLobbyUpdated, summary)
	}
	return player, nil
}

// ListAvailableRooms returns rooms that can still be joined or watched
// from the lobby. Private-vs-public filtering is up to the caller.
func (m *Manager) ListAvailableRooms() ([]*models.Room, error) {
	rooms, err := m.store.ListRoomsByStatus(models.RoomOpen, models.RoomFull)
	if err != nil {
		return nil, err
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// Summary builds the lobby view of a room, player names in join order.
func (m *Manager) Summary(roomID string) (*models.RoomSummary, error) {
	room, err := m.store.GetRoom(roomID)
	if err != nil {
		return nil, err
	}

	players, err := m.store.PlayersByRoom(roomID)
	if err != nil {
		return nil, err
	}
	var lobby []*models.Player
	for _, p := range players {
		if p.GameID == "" {
			lobby = append(lobby, p)
		}
	}
	sort.Slice(lobby, func(i, j int) bool {
		return lobby[i].JoinedAt.Before(lobby[j].JoinedAt)
	})

	ids := make([]string, 0, len(lobby))
	for _, p := range lobby {
		ids = append(ids, p.UserID)
	}
	users, err := m.store.GetUsersByID(ids)
	if err != nil {
		return nil, err
	}

	summary := &models.RoomSummary{
		ID:             room.ID,
		Name:           room.Name,
		Status:         string(room.Status),
		MaxPlayers:     room.MaxPlayers,
		CurrentPlayers: room.CurrentPlayers,
		IsPrivate:      room.IsPrivate,
		PlayerNames:    make([]string, 0, len(lobby)),
		CreatedAt:      room.CreatedAt,
	}
	for _, p := range lobby {
		if u, ok := users[p.UserID]; ok {
			summary.PlayerNames = append(summary.PlayerNames, u.Username)
		}
	}
	if game, err := m.store.GameByRoom(roomID); err == nil {
		summary.GameID = game.ID
	}
	return summary, nil
}

// SweepStale closes rooms that never started a game within ttl and
// releases their lock entries.
func (m *Manager) SweepStale(ttl time.Duration) {
	rooms, err := m.store.ListRoomsByStatus(models.RoomOpen, models.RoomFull)
	if err != nil {
		logger.Log.Errorf("Stale room sweep failed: %v", err)
		return
	}

	cutoff := time.Now().Add(-ttl)
	for _, room := range rooms {
		if room.CreatedAt.After(cutoff) {
			continue
		}
		unlock := m.LockRoom(room.ID)
		fresh, err := m.store.GetRoom(room.ID)
		if err == nil && (fresh.Status == models.RoomOpen || fresh.Status == models.RoomFull) {
			fresh.Status = models.RoomClosed
			if err := m.store.UpdateRoom(fresh); err != nil {
				logger.Log.Warnf("Closing stale room %s failed: %v", room.ID, err)
			} else {
				logger.Log.Infof("Closed stale room %s", room.ID)
			}
		}
		unlock()
		m.releaseLock(room.ID)
	}
}
