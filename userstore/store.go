// Package userstore is the minimal out-of-scope user collaborator the core
// consumes for collaborator-add validation and diff attribution display.
// Account storage, credential verification, and token issuance live
// elsewhere; this package only declares the slice of that surface the
// editing core calls into.
package userstore

import (
	"context"
	"database/sql"
	"fmt"
)

type User struct {
	ID       string
	Name     string
	IsAdmin  bool
}

type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	IsAdmin(ctx context.Context, id string) (bool, error)
	GetBatch(ctx context.Context, ids []string) (map[string]User, error)
}

// PostgresStore is a thin read-only view over a users table owned by the
// account service; the editing core never writes to it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = $1`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("userstore: exists: %w", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) IsAdmin(ctx context.Context, id string) (bool, error) {
	var isAdmin bool
	err := s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = $1`, id).Scan(&isAdmin)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("userstore: is admin: %w", err)
	}
	return isAdmin, nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, ids []string) (map[string]User, error) {
	if len(ids) == 0 {
		return map[string]User{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_admin FROM users WHERE id = ANY($1)
	`, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("userstore: get batch: %w", err)
	}
	defer rows.Close()

	out := make(map[string]User, len(ids))
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.IsAdmin); err != nil {
			continue
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
