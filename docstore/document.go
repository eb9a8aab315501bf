// Package docstore is the document aggregate and its Postgres-backed store,
// the "Document store" collaborator the core consumes per the external
// interfaces contract (canUserEdit, content persistence, change-log linkage
// used by the version store, and the session reset hook).
package docstore

import "time"

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusDeleted Status = "DELETED"
)

type Document struct {
	ID              string
	Title           string
	Content         string
	OwnerID         string
	CollaboratorIDs []string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (d *Document) hasCollaborator(userID string) bool {
	for _, id := range d.CollaboratorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CanEdit is the in-process predicate: owner or collaborator, document ACTIVE.
func (d *Document) CanEdit(userID string) bool {
	if d.Status != StatusActive {
		return false
	}
	return d.OwnerID == userID || d.hasCollaborator(userID)
}
