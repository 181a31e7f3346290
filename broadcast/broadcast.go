// broadcast/broadcast.go
package broadcast

import (
	"github.com/serpientes/gameserver/logger"
	"github.com/serpientes/gameserver/session"
)

// Events published to lobby and game groups.
const (
	EventLobbyPlayerJoined   = "LobbyPlayerJoined"
	EventLobbyPlayerLeft     = "LobbyPlayerLeft"
	EventLobbyUpdated        = "LobbyUpdated"
	EventGameStateUpdate     = "GameStateUpdate"
	EventMoveCompleted       = "MoveCompleted"
	EventReceiveQuizQuestion = "ReceiveQuizQuestion"
	EventGameFinished        = "GameFinished"
	EventPlayerSurrendered   = "PlayerSurrendered"
	EventReceiveEmote        = "ReceiveEmote"
	EventError               = "Error"
)

// LobbyGroup keys the subscriber group of a room's lobby.
func LobbyGroup(roomID string) string {
	return "lobby:" + roomID
}

// GameGroup keys the subscriber group of a running game.
func GameGroup(gameID string) string {
	return "game:" + gameID
}

// Broadcaster is the pub/sub gateway the room and game packages publish
// through. Delivery is fire-and-forget, at-least-once.
type Broadcaster interface {
	PublishToGroup(group, event string, payload any) error
	PublishToUser(userID, event string, payload any) error
}

// HubBroadcaster fans events out over the session manager's groups.
type HubBroadcaster struct {
	sessions *session.Manager
}

func NewHubBroadcaster(sessions *session.Manager) *HubBroadcaster {
	return &HubBroadcaster{sessions: sessions}
}

func (b *HubBroadcaster) PublishToGroup(group, event string, payload any) error {
	for _, s := range b.sessions.GroupSessions(group) {
		if err := s.Send(event, payload); err != nil {
			// Dead connections are reaped by the server's read loop.
			logger.Log.Warnf("broadcast to session %s failed: %v", s.ID, err)
		}
	}
	return nil
}

func (b *HubBroadcaster) PublishToUser(userID, event string, payload any) error {
	for _, s := range b.sessions.GetByUserID(userID) {
		if err := s.Send(event, payload); err != nil {
			logger.Log.Warnf("send to user %s session %s failed: %v", userID, s.ID, err)
		}
	}
	return nil
}
