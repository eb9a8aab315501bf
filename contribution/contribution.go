// Package contribution tracks the per-{documentId,userId} aggregate named in
// the data model: edit counts and character churn, incremented whenever a
// version is created.
package contribution

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Contribution struct {
	DocumentID        string
	UserID            string
	EditCount         int
	CharactersAdded   int
	CharactersDeleted int
	FirstContribution time.Time
	LastContribution  time.Time
}

type Store interface {
	RecordVersion(ctx context.Context, documentID, userID string, charsAdded, charsDeleted int) error
	Get(ctx context.Context, documentID, userID string) (*Contribution, error)
}

// PostgresStore upserts into user_contributions with an
// INSERT ... ON CONFLICT DO UPDATE statement.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RecordVersion(ctx context.Context, documentID, userID string, charsAdded, charsDeleted int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_contributions
			(document_id, user_id, edit_count, characters_added, characters_deleted, first_contribution, last_contribution)
		VALUES ($1, $2, 1, $3, $4, NOW(), NOW())
		ON CONFLICT (document_id, user_id) DO UPDATE SET
			edit_count = user_contributions.edit_count + 1,
			characters_added = user_contributions.characters_added + EXCLUDED.characters_added,
			characters_deleted = user_contributions.characters_deleted + EXCLUDED.characters_deleted,
			last_contribution = NOW()
	`, documentID, userID, charsAdded, charsDeleted)
	if err != nil {
		return fmt.Errorf("contribution: record version: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID, userID string) (*Contribution, error) {
	c := &Contribution{DocumentID: documentID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT edit_count, characters_added, characters_deleted, first_contribution, last_contribution
		FROM user_contributions WHERE document_id = $1 AND user_id = $2
	`, documentID, userID).Scan(&c.EditCount, &c.CharactersAdded, &c.CharactersDeleted,
		&c.FirstContribution, &c.LastContribution)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("contribution: get: %w", err)
	}
	return c, nil
}
