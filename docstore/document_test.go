package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanEditOwner(t *testing.T) {
	doc := &Document{OwnerID: "alice", Status: StatusActive}
	assert.True(t, doc.CanEdit("alice"))
}

func TestCanEditCollaborator(t *testing.T) {
	doc := &Document{OwnerID: "alice", CollaboratorIDs: []string{"bob"}, Status: StatusActive}
	assert.True(t, doc.CanEdit("bob"))
	assert.False(t, doc.CanEdit("carol"))
}

func TestCanEditDeletedDocumentDeniesEveryone(t *testing.T) {
	doc := &Document{OwnerID: "alice", CollaboratorIDs: []string{"bob"}, Status: StatusDeleted}
	assert.False(t, doc.CanEdit("alice"))
	assert.False(t, doc.CanEdit("bob"))
}
