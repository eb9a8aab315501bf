package room

import (
	"context"
	"testing"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocStore struct {
	editable map[string]bool
}

func (f *fakeDocStore) GetByID(ctx context.Context, id string) (*docstore.Document, error) {
	return nil, nil
}
func (f *fakeDocStore) UpdateContent(ctx context.Context, id, content string) error { return nil }
func (f *fakeDocStore) CanUserEdit(ctx context.Context, documentID, userID string) (bool, error) {
	return f.editable[documentID+":"+userID], nil
}
func (f *fakeDocStore) ResetSession(documentID string) {}

func TestJoinDeniedWithoutAuthorization(t *testing.T) {
	docs := &fakeDocStore{editable: map[string]bool{}}
	m := NewManager(docs)

	_, err := m.Join(context.Background(), "doc-1", "intruder", "Eve")
	require.Error(t, err)
	assert.False(t, m.IsMember("doc-1", "intruder"))
	assert.Equal(t, 0, m.MemberCount("doc-1"))
}

func TestJoinAndLeaveRoundTrip(t *testing.T) {
	docs := &fakeDocStore{editable: map[string]bool{"doc-1:alice": true}}
	m := NewManager(docs)

	_, err := m.Join(context.Background(), "doc-1", "alice", "Alice")
	require.NoError(t, err)
	assert.True(t, m.IsMember("doc-1", "alice"))
	assert.Contains(t, m.DocumentsForUser("alice"), "doc-1")

	m.Leave("doc-1", "alice")
	assert.False(t, m.IsMember("doc-1", "alice"))
	assert.Empty(t, m.DocumentsForUser("alice"))
}

func TestDisconnectLeavesEveryRoom(t *testing.T) {
	docs := &fakeDocStore{editable: map[string]bool{
		"doc-1:alice": true,
		"doc-2:alice": true,
	}}
	m := NewManager(docs)

	_, err := m.Join(context.Background(), "doc-1", "alice", "Alice")
	require.NoError(t, err)
	_, err = m.Join(context.Background(), "doc-2", "alice", "Alice")
	require.NoError(t, err)

	left := m.Disconnect("alice")
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, left)
	assert.False(t, m.IsMember("doc-1", "alice"))
	assert.False(t, m.IsMember("doc-2", "alice"))
}

func TestIsMemberMatchesList(t *testing.T) {
	docs := &fakeDocStore{editable: map[string]bool{"doc-1:alice": true}}
	m := NewManager(docs)
	_, err := m.Join(context.Background(), "doc-1", "alice", "Alice")
	require.NoError(t, err)

	found := false
	for _, member := range m.List("doc-1") {
		if member.UserID == "alice" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, found, m.IsMember("doc-1", "alice"))
}

func TestCursorColorIsDeterministic(t *testing.T) {
	a := CursorColor("alice")
	b := CursorColor("alice")
	assert.Equal(t, a, b)
}
