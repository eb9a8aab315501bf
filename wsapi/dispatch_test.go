package wsapi

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/room"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/session"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/userstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocStore struct {
	docs map[string]*docstore.Document
}

func newFakeDocStore(id, content string, collaborators ...string) *fakeDocStore {
	return &fakeDocStore{docs: map[string]*docstore.Document{
		id: {ID: id, Content: content, OwnerID: "owner", CollaboratorIDs: collaborators, Status: docstore.StatusActive},
	}}
}

func (f *fakeDocStore) GetByID(ctx context.Context, id string) (*docstore.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, context.DeadlineExceeded
	}
	cp := *d
	return &cp, nil
}
func (f *fakeDocStore) UpdateContent(ctx context.Context, id, content string) error {
	f.docs[id].Content = content
	return nil
}
func (f *fakeDocStore) CanUserEdit(ctx context.Context, documentID, userID string) (bool, error) {
	d, ok := f.docs[documentID]
	if !ok {
		return false, nil
	}
	return d.CanEdit(userID), nil
}
func (f *fakeDocStore) ResetSession(documentID string) {}

type fakeChangeLog struct {
	entries []changelog.Entry
}

func (f *fakeChangeLog) Append(ctx context.Context, entry changelog.Entry) (changelog.Entry, error) {
	entry.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return entry, nil
}
func (f *fakeChangeLog) ListByDocument(ctx context.Context, documentID string, order changelog.Order) ([]changelog.Entry, error) {
	return f.entries, nil
}
func (f *fakeChangeLog) ListUnversioned(ctx context.Context, documentID string) ([]changelog.Entry, error) {
	return f.entries, nil
}
func (f *fakeChangeLog) ListByVersion(ctx context.Context, versionID string) ([]changelog.Entry, error) {
	return nil, nil
}
func (f *fakeChangeLog) LinkUnversionedToVersion(ctx context.Context, documentID, versionID string) error {
	return nil
}
func (f *fakeChangeLog) UnlinkFromVersions(ctx context.Context, documentID string, versionIDs []string) error {
	return nil
}

type fakeUserStore struct {
	known map[string]bool
}

func (f *fakeUserStore) Exists(ctx context.Context, id string) (bool, error) { return f.known[id], nil }
func (f *fakeUserStore) IsAdmin(ctx context.Context, id string) (bool, error) {
	return false, nil
}
func (f *fakeUserStore) GetBatch(ctx context.Context, ids []string) (map[string]userstore.User, error) {
	return nil, nil
}

func newTestHub(docs *fakeDocStore, changes *fakeChangeLog, users *fakeUserStore) *Hub {
	rm := room.NewManager(docs)
	sessions := session.NewManager(docs, changes, nil, 30*time.Minute)
	hub := NewHub(rm, sessions, changes, users, nil)
	sessions.SetBroadcaster(hub)
	return hub
}

func newTestClient(hub *Hub) *client {
	return newClient(hub, nil)
}

func drain(t *testing.T, c *client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	default:
		return nil
	}
}

func TestHandleSubscribeAdmitsAuthorizedKnownUser(t *testing.T) {
	docs := newFakeDocStore("doc-1", "hello", "alice")
	hub := newTestHub(docs, &fakeChangeLog{}, &fakeUserStore{known: map[string]bool{"alice": true}})
	c := newTestClient(hub)

	msg, err := json.Marshal(subscribeMessage{Type: "subscribe", DocumentID: "doc-1", UserID: "alice", UserName: "Alice", Path: pathOperations})
	require.NoError(t, err)
	hub.dispatch(c, "subscribe", msg)

	assert.True(t, c.subscribedTo(pathOperations))
	assert.True(t, hub.rm.IsMember("doc-1", "alice"))
	assert.Nil(t, drain(t, c), "no error should have been sent")
}

func TestHandleSubscribeRejectsUnknownUser(t *testing.T) {
	docs := newFakeDocStore("doc-1", "hello", "alice")
	hub := newTestHub(docs, &fakeChangeLog{}, &fakeUserStore{known: map[string]bool{}})
	c := newTestClient(hub)

	msg, _ := json.Marshal(subscribeMessage{Type: "subscribe", DocumentID: "doc-1", UserID: "alice", Path: pathOperations})
	hub.dispatch(c, "subscribe", msg)

	assert.False(t, hub.rm.IsMember("doc-1", "alice"))
	raw := drain(t, c)
	require.NotNil(t, raw)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "UNAUTHORIZED", env.Error)
}

func TestHandleSubscribeRejectsUnauthorizedCollaborator(t *testing.T) {
	docs := newFakeDocStore("doc-1", "hello")
	hub := newTestHub(docs, &fakeChangeLog{}, &fakeUserStore{known: map[string]bool{"eve": true}})
	c := newTestClient(hub)

	msg, _ := json.Marshal(subscribeMessage{Type: "subscribe", DocumentID: "doc-1", UserID: "eve", Path: pathOperations})
	hub.dispatch(c, "subscribe", msg)

	assert.False(t, hub.rm.IsMember("doc-1", "eve"))
	raw := drain(t, c)
	require.NotNil(t, raw)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "UNAUTHORIZED", env.Error)
}

func TestHandleEditAppliesAndBroadcastsToSubscriber(t *testing.T) {
	docs := newFakeDocStore("doc-1", "Hello", "alice")
	changes := &fakeChangeLog{}
	hub := newTestHub(docs, changes, &fakeUserStore{known: map[string]bool{"alice": true}})

	subscriber := newTestClient(hub)
	subMsg, _ := json.Marshal(subscribeMessage{Type: "subscribe", DocumentID: "doc-1", UserID: "alice", Path: pathOperations})
	hub.dispatch(subscriber, "subscribe", subMsg)
	drain(t, subscriber)

	editor := newTestClient(hub)
	editMsg, _ := json.Marshal(editMessage{
		Type: "edit", DocumentID: "doc-1", UserID: "alice",
		Operation: operationInput{Type: "INSERT", Position: 5, Content: strPtr(" World")},
	})
	hub.dispatch(editor, "edit", editMsg)

	raw := drain(t, subscriber)
	require.NotNil(t, raw, "subscriber should have received the broadcast operation")
	var env operationEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "doc-1", env.DocumentID)
	assert.Equal(t, "Hello World", docs.docs["doc-1"].Content)
}

func TestHandleEditRejectsUnauthorizedUser(t *testing.T) {
	docs := newFakeDocStore("doc-1", "Hello")
	hub := newTestHub(docs, &fakeChangeLog{}, &fakeUserStore{known: map[string]bool{"mallory": true}})
	c := newTestClient(hub)

	editMsg, _ := json.Marshal(editMessage{
		Type: "edit", DocumentID: "doc-1", UserID: "mallory",
		Operation: operationInput{Type: "INSERT", Position: 0, Content: strPtr("x")},
	})
	hub.dispatch(c, "edit", editMsg)

	assert.Equal(t, "Hello", docs.docs["doc-1"].Content)
	raw := drain(t, c)
	require.NotNil(t, raw)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "UNAUTHORIZED", env.Error)
}

func TestHandleRecoveryReturnsMissedOperationsSinceLastID(t *testing.T) {
	docs := newFakeDocStore("doc-1", "abc", "alice")
	changes := &fakeChangeLog{entries: []changelog.Entry{
		{ID: 1, DocumentID: "doc-1", UserID: "alice", ChangeType: changelog.Insert, Content: "a"},
		{ID: 2, DocumentID: "doc-1", UserID: "alice", ChangeType: changelog.Insert, Content: "b"},
	}}
	hub := newTestHub(docs, changes, &fakeUserStore{known: map[string]bool{"alice": true}})
	c := newTestClient(hub)

	recMsg, _ := json.Marshal(recoveryMessage{Type: "recover", DocumentID: "doc-1", UserID: "alice", LastOperationID: 1})
	hub.dispatch(c, "recover", recMsg)

	raw := drain(t, c)
	require.NotNil(t, raw)
	var env recoveryEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.False(t, env.UpToDate)
	assert.False(t, env.RefetchRequired)
	require.Len(t, env.MissedOperations, 1)
	assert.Equal(t, int64(2), env.MissedOperations[0].Operation.OperationID)
}

func TestHandleRecoveryRequestsRefetchBeyondBufferDepth(t *testing.T) {
	docs := newFakeDocStore("doc-1", "abc", "alice")
	var entries []changelog.Entry
	for i := int64(1); i <= recoveryBufferCap+5; i++ {
		entries = append(entries, changelog.Entry{ID: i, DocumentID: "doc-1", UserID: "alice", ChangeType: changelog.Insert, Content: "x"})
	}
	changes := &fakeChangeLog{entries: entries}
	hub := newTestHub(docs, changes, &fakeUserStore{known: map[string]bool{"alice": true}})
	c := newTestClient(hub)

	recMsg, _ := json.Marshal(recoveryMessage{Type: "recover", DocumentID: "doc-1", UserID: "alice", LastOperationID: 0})
	hub.dispatch(c, "recover", recMsg)

	raw := drain(t, c)
	require.NotNil(t, raw)
	var env recoveryEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.True(t, env.RefetchRequired)
	assert.Empty(t, env.MissedOperations)
}

func strPtr(s string) *string { return &s }
