// Package room implements the authorization-gated membership manager (C4):
// who is subscribed to which document, plus the deterministic cursor color.
// Presence events, cursor relay and transport (WebSocket framing,
// read/write pumps) live in wsapi, which depends on this package for
// authorization and membership, not the other way around.
package room

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/apperr"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/metrics"
)

type Member struct {
	UserID   string
	UserName string
	JoinedAt time.Time
}

// Manager tracks room membership. Concurrent maps in spirit: every mutation
// is under mu, membership per document cleaned up on empty.
type Manager struct {
	mu      sync.RWMutex
	members map[string]map[string]*Member // documentID -> userID -> Member
	byUser  map[string]map[string]bool    // userID -> set of documentID

	docs docstore.Store
}

func NewManager(docs docstore.Store) *Manager {
	return &Manager{
		members: make(map[string]map[string]*Member),
		byUser:  make(map[string]map[string]bool),
		docs:    docs,
	}
}

// CanEdit delegates the authorization predicate to the document store.
func (m *Manager) CanEdit(ctx context.Context, documentID, userID string) (bool, error) {
	ok, err := m.docs.CanUserEdit(ctx, documentID, userID)
	if err != nil {
		return false, fmt.Errorf("room: can edit: %w", err)
	}
	return ok, nil
}

// Join admits userID to documentID's room iff canEdit holds.
func (m *Manager) Join(ctx context.Context, documentID, userID, userName string) (*Member, error) {
	ok, err := m.CanEdit(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %s may not join document %s: %w", userID, documentID, apperr.ErrUnauthorized)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.members[documentID]
	if !ok {
		members = make(map[string]*Member)
		m.members[documentID] = members
	}
	member := &Member{UserID: userID, UserName: userName, JoinedAt: time.Now()}
	members[userID] = member

	if m.byUser[userID] == nil {
		m.byUser[userID] = make(map[string]bool)
	}
	m.byUser[userID][documentID] = true

	metrics.RoomMembers.WithLabelValues(documentID).Set(float64(len(members)))

	return member, nil
}

// Leave removes userID from documentID's room, evicting the room entry when
// it empties.
func (m *Manager) Leave(documentID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(documentID, userID)
}

func (m *Manager) leaveLocked(documentID, userID string) {
	if members, ok := m.members[documentID]; ok {
		delete(members, userID)
		metrics.RoomMembers.WithLabelValues(documentID).Set(float64(len(members)))
		if len(members) == 0 {
			delete(m.members, documentID)
		}
	}
	if docs, ok := m.byUser[userID]; ok {
		delete(docs, documentID)
		if len(docs) == 0 {
			delete(m.byUser, userID)
		}
	}
}

// Disconnect leaves every room userID is in and returns the affected
// document ids.
func (m *Manager) Disconnect(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.byUser[userID]
	left := make([]string, 0, len(docs))
	for documentID := range docs {
		left = append(left, documentID)
	}
	for _, documentID := range left {
		m.leaveLocked(documentID, userID)
	}
	return left
}

// List returns a membership snapshot for documentID.
func (m *Manager) List(documentID string) []Member {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.members[documentID]
	out := make([]Member, 0, len(members))
	for _, mem := range members {
		out = append(out, *mem)
	}
	return out
}

func (m *Manager) IsMember(documentID, userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.members[documentID]
	if !ok {
		return false
	}
	_, ok = members[userID]
	return ok
}

func (m *Manager) MemberCount(documentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[documentID])
}

// HasSubscribers implements session.MembershipChecker.
func (m *Manager) HasSubscribers(documentID string) bool {
	return m.MemberCount(documentID) > 0
}

// DocumentsForUser is the inverse of List/IsMember: every document userID
// currently belongs to.
func (m *Manager) DocumentsForUser(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := m.byUser[userID]
	out := make([]string, 0, len(docs))
	for documentID := range docs {
		out = append(out, documentID)
	}
	return out
}

var cursorPalette = []string{
	"#E57373", "#64B5F6", "#81C784", "#FFD54F",
	"#BA68C8", "#4DB6AC", "#F06292", "#A1887F",
}

// CursorColor derives a deterministic color from userID.
func CursorColor(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return cursorPalette[h.Sum32()%uint32(len(cursorPalette))]
}
