package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/apperr"
)

// Store is the document-CRUD and authorization collaborator the core
// consumes. The change-log linkage operations named alongside it in the
// external interface contract (getUnversionedChanges, linkChangesToVersion,
// unlinkChangesFromVersions, getChangesByVersion) live on changelog.Store
// instead — version.Store depends on both stores directly rather than
// routing change-log calls through a second layer.
type Store interface {
	GetByID(ctx context.Context, id string) (*Document, error)
	UpdateContent(ctx context.Context, id, content string) error
	CanUserEdit(ctx context.Context, documentID, userID string) (bool, error)
	// ResetSession notifies whatever holds the in-memory document session
	// (package session) that it must be evicted and re-initialized from
	// persisted content. Wired by the caller at construction time; nil
	// until set, in which case it is a no-op.
	ResetSession(documentID string)
}

// PostgresStore backs Store against the documents / document_collaborators
// tables.
type PostgresStore struct {
	db      *sql.DB
	onReset func(documentID string)
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SetSessionEvictor wires the session-eviction callback. Done post-
// construction because package session depends on docstore.Store, so
// docstore cannot import session without a cycle.
func (s *PostgresStore) SetSessionEvictor(fn func(documentID string)) {
	s.onReset = fn
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Document, error) {
	doc := &Document{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT title, content, owner_id, status, created_at, updated_at
		FROM documents WHERE id = $1
	`, id).Scan(&doc.Title, &doc.Content, &doc.OwnerID, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, apperr.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get by id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT collaborator_id FROM document_collaborators WHERE document_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("docstore: get collaborators: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var collaboratorID string
		if err := rows.Scan(&collaboratorID); err != nil {
			continue
		}
		doc.CollaboratorIDs = append(doc.CollaboratorIDs, collaboratorID)
	}
	return doc, rows.Err()
}

func (s *PostgresStore) UpdateContent(ctx context.Context, id, content string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET content = $1, updated_at = NOW() WHERE id = $2
	`, content, id)
	if err != nil {
		return fmt.Errorf("docstore: update content: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, apperr.ErrDocumentNotFound)
	}
	return nil
}

func (s *PostgresStore) CanUserEdit(ctx context.Context, documentID, userID string) (bool, error) {
	doc, err := s.GetByID(ctx, documentID)
	if err != nil {
		return false, err
	}
	return doc.CanEdit(userID), nil
}

func (s *PostgresStore) ResetSession(documentID string) {
	if s.onReset != nil {
		s.onReset(documentID)
	}
}

func (s *PostgresStore) AddCollaborator(ctx context.Context, documentID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_collaborators (document_id, collaborator_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, documentID, userID)
	if err != nil {
		return fmt.Errorf("docstore: add collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveCollaborator(ctx context.Context, documentID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM document_collaborators WHERE document_id = $1 AND collaborator_id = $2
	`, documentID, userID)
	if err != nil {
		return fmt.Errorf("docstore: remove collaborator: %w", err)
	}
	return nil
}
