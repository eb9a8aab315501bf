package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

// Order controls how ListByDocument sorts entries.
type Order string

const (
	Ascending  Order = "ASC"
	Descending Order = "DESC"
)

// Store is the persistence contract for the change log. Ordering is by
// timestamp ascending with ties broken by insertion id, matching the
// Postgres bigserial id as a stable secondary sort key.
type Store interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
	ListByDocument(ctx context.Context, documentID string, order Order) ([]Entry, error)
	ListUnversioned(ctx context.Context, documentID string) ([]Entry, error)
	ListByVersion(ctx context.Context, versionID string) ([]Entry, error)
	LinkUnversionedToVersion(ctx context.Context, documentID, versionID string) error
	UnlinkFromVersions(ctx context.Context, documentID string, versionIDs []string) error
}

// PostgresStore backs Store with lib/pq against the change_tracking table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) (Entry, error) {
	query := `
		INSERT INTO change_tracking (document_id, user_id, change_type, content, position, timestamp)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, timestamp
	`
	var ts = entry.Timestamp
	err := s.db.QueryRowContext(ctx, query, entry.DocumentID, entry.UserID, entry.ChangeType,
		entry.Content, entry.Position, nullableTime(ts)).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return Entry{}, fmt.Errorf("changelog: append: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID string, order Order) ([]Entry, error) {
	if order != Ascending && order != Descending {
		order = Ascending
	}
	query := fmt.Sprintf(`
		SELECT id, document_id, user_id, change_type, content, position, timestamp, version_id
		FROM change_tracking
		WHERE document_id = $1
		ORDER BY timestamp %s, id %s
	`, order, order)

	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("changelog: list by document: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListUnversioned(ctx context.Context, documentID string) ([]Entry, error) {
	query := `
		SELECT id, document_id, user_id, change_type, content, position, timestamp, version_id
		FROM change_tracking
		WHERE document_id = $1 AND version_id IS NULL
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("changelog: list unversioned: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListByVersion(ctx context.Context, versionID string) ([]Entry, error) {
	query := `
		SELECT id, document_id, user_id, change_type, content, position, timestamp, version_id
		FROM change_tracking
		WHERE version_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("changelog: list by version: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) LinkUnversionedToVersion(ctx context.Context, documentID, versionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE change_tracking SET version_id = $1
		WHERE document_id = $2 AND version_id IS NULL
	`, versionID, documentID)
	if err != nil {
		return fmt.Errorf("changelog: link unversioned: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnlinkFromVersions(ctx context.Context, documentID string, versionIDs []string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE change_tracking SET version_id = NULL
		WHERE document_id = $1 AND version_id = ANY($2)
	`, documentID, pqStringArray(versionIDs))
	if err != nil {
		return fmt.Errorf("changelog: unlink from versions: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var versionID sql.NullString
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.UserID, &e.ChangeType, &e.Content,
			&e.Position, &e.Timestamp, &versionID); err != nil {
			log.Printf("changelog: scan entry: %v", err)
			continue
		}
		if versionID.Valid {
			v := versionID.String
			e.VersionID = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
