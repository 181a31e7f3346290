package session

import (
	"net"
	"testing"

	"github.com/serpientes/gameserver/network"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct {
	sent []string
}

func (m *MockConnection) Send(event string, payload any) error {
	m.sent = append(m.sent, event)
	return nil
}
func (m *MockConnection) ReadEnvelope() (*network.Envelope, error) { return nil, nil }
func (m *MockConnection) Close() error                             { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                     { return &net.TCPAddr{} }

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sess := NewSession("s1", &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("Expected 1 session, got %d", manager.Count())
	}

	retrieved, exists := manager.Get("s1")
	if !exists || retrieved != sess {
		t.Fatal("Get should return the added session instance")
	}

	manager.Remove("s1")
	if _, exists := manager.Get("s1"); exists {
		t.Fatal("Removed session should not be found")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()

	a := NewSession("s1", &MockConnection{})
	a.UserID = "u1"
	b := NewSession("s2", &MockConnection{})
	b.UserID = "u2"
	c := NewSession("s3", &MockConnection{})
	c.UserID = "u1"

	manager.Add(a)
	manager.Add(b)
	manager.Add(c)

	if got := manager.GetByUserID("u1"); len(got) != 2 {
		t.Errorf("Expected 2 sessions for u1, got %d", len(got))
	}
	if got := manager.GetByUserID("u9"); len(got) != 0 {
		t.Errorf("Expected 0 sessions for u9, got %d", len(got))
	}
}

func TestManager_Groups(t *testing.T) {
	manager := NewManager()
	sess := NewSession("s1", &MockConnection{})
	manager.Add(sess)

	if !manager.JoinGroup("lobby:r1", "s1") {
		t.Fatal("JoinGroup should succeed for a known session")
	}
	if manager.JoinGroup("lobby:r1", "unknown") {
		t.Fatal("JoinGroup should fail for an unknown session")
	}

	members := manager.GroupSessions("lobby:r1")
	if len(members) != 1 || members[0] != sess {
		t.Fatalf("Expected group to contain the session, got %v", members)
	}

	manager.LeaveGroup("lobby:r1", "s1")
	if len(manager.GroupSessions("lobby:r1")) != 0 {
		t.Error("LeaveGroup should remove the member")
	}
}

func TestManager_Remove_EvictsFromGroups(t *testing.T) {
	manager := NewManager()
	sess := NewSession("s1", &MockConnection{})
	manager.Add(sess)
	manager.JoinGroup("game:g1", "s1")

	manager.Remove("s1")

	if len(manager.GroupSessions("game:g1")) != 0 {
		t.Error("Removing a session should evict it from its groups")
	}
}
