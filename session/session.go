// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/serpientes/gameserver/network"
)

// Session is one authenticated websocket connection. The user identity
// is bound at connect time and treated as trusted input.
type Session struct {
	ID         string
	Conn       network.Connection
	UserID     string
	Username   string
	CreatedAt  time.Time
	LastActive time.Time
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Send(event string, payload any) error {
	s.mutex.Lock()
	s.LastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(event, payload)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager tracks sessions and their group memberships. Groups are keyed
// by lobby/game group ids and back the broadcast gateway.
type Manager struct {
	sessions map[string]*Session
	groups   map[string]map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		groups:   make(map[string]map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

// Remove drops the session and evicts it from every group.
func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
	for group, members := range m.groups {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(m.groups, group)
		}
	}
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID == userID {
			result = append(result, session)
		}
	}
	return result
}

// JoinGroup subscribes a known session to a group.
func (m *Manager) JoinGroup(group, sessionID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return false
	}
	if m.groups[group] == nil {
		m.groups[group] = make(map[string]*Session)
	}
	m.groups[group][sessionID] = session
	return true
}

func (m *Manager) LeaveGroup(group, sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	members, exists := m.groups[group]
	if !exists {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(m.groups, group)
	}
}

// GroupSessions returns a snapshot of a group's members.
func (m *Manager) GroupSessions(group string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	members := m.groups[group]
	result := make([]*Session, 0, len(members))
	for _, session := range members {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
