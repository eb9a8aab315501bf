package session

import (
	"context"
	"testing"
	"time"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/ot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocStore struct {
	docs map[string]*docstore.Document
}

func newFakeDocStore(id, content string) *fakeDocStore {
	return &fakeDocStore{docs: map[string]*docstore.Document{
		id: {ID: id, Content: content, OwnerID: "owner", Status: docstore.StatusActive},
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
	return true, nil
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

type recordingBroadcaster struct {
	events []Broadcast
}

func (r *recordingBroadcaster) Broadcast(b Broadcast) {
	r.events = append(r.events, b)
}

func newTestManager(docID, content string) (*Manager, *fakeDocStore, *fakeChangeLog, *recordingBroadcaster) {
	docs := newFakeDocStore(docID, content)
	changes := &fakeChangeLog{}
	m := NewManager(docs, changes, nil, 30*time.Minute)
	bc := &recordingBroadcaster{}
	m.SetBroadcaster(bc)
	return m, docs, changes, bc
}

func TestIngestAppliesAndBroadcasts(t *testing.T) {
	m, docs, changes, bc := newTestManager("doc-1", "Hello")
	op := ot.NewInsert("doc-1", "u1", 5, " World")

	result, applied, err := m.Ingest(context.Background(), op)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, int64(1), result.OperationID)
	assert.Equal(t, "Hello World", docs.docs["doc-1"].Content)
	require.Len(t, changes.entries, 1)
	assert.Equal(t, " World", changes.entries[0].Content)
	require.Len(t, bc.events, 1)
	assert.Equal(t, "doc-1", bc.events[0].DocumentID)
}

func TestIngestRejectsInvalidOperation(t *testing.T) {
	m, _, _, _ := newTestManager("doc-1", "Hello")
	op := ot.NewDelete("doc-1", "u1", 0, -5)

	_, applied, err := m.Ingest(context.Background(), op)
	require.Error(t, err)
	assert.False(t, applied)
}

func TestIngestConcurrentOperationsTransformAgainstEachOther(t *testing.T) {
	m, docs, _, _ := newTestManager("doc-1", "")

	a := ot.NewInsert("doc-1", "u1", 0, "A")
	b := ot.NewInsert("doc-1", "u2", 0, "B")

	_, applied, err := m.Ingest(context.Background(), a)
	require.NoError(t, err)
	require.True(t, applied)

	_, applied, err = m.Ingest(context.Background(), b)
	require.NoError(t, err)
	require.True(t, applied)

	assert.Equal(t, "AB", docs.docs["doc-1"].Content)
}

func TestIngestDropsZeroLengthDeleteWithoutPersistingOrBroadcasting(t *testing.T) {
	m, _, changes, bc := newTestManager("doc-1", "abc")

	first := ot.NewDelete("doc-1", "u1", 0, 3)
	_, applied, err := m.Ingest(context.Background(), first)
	require.NoError(t, err)
	require.True(t, applied)

	second := ot.NewDelete("doc-1", "u2", 0, 3)
	_, applied, err = m.Ingest(context.Background(), second)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Len(t, changes.entries, 1, "zero-length transformed delete must not be logged")
	assert.Len(t, bc.events, 1, "zero-length transformed delete must not be broadcast")
}

func TestEvictForcesReinitFromPersistedContent(t *testing.T) {
	m, docs, _, _ := newTestManager("doc-1", "Hello")

	_, _, err := m.Ingest(context.Background(), ot.NewInsert("doc-1", "u1", 5, "!"))
	require.NoError(t, err)
	assert.Equal(t, "Hello!", docs.docs["doc-1"].Content)

	docs.docs["doc-1"].Content = "Reverted"
	m.Evict("doc-1")

	_, _, err = m.Ingest(context.Background(), ot.NewInsert("doc-1", "u1", 8, "!"))
	require.NoError(t, err)
	assert.Equal(t, "Reverted!", docs.docs["doc-1"].Content)
}

func TestOperationIDsAreMonotonic(t *testing.T) {
	m, _, _, _ := newTestManager("doc-1", "")

	var last int64
	for i := 0; i < 5; i++ {
		result, _, err := m.Ingest(context.Background(), ot.NewInsert("doc-1", "u1", 0, "x"))
		require.NoError(t, err)
		assert.Greater(t, result.OperationID, last)
		last = result.OperationID
	}
}
