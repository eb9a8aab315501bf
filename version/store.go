package version

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/apperr"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/changelog"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/contribution"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/docstore"
	"github.com/Ghost-hands/CollaborativeEditingSystemGoogleDOCS-sub000/snapshot"
	"github.com/pmezard/go-difflib/difflib"
)

// Archiver is the subset of snapshot.Archiver the store needs, so tests can
// substitute a fake without touching AWS.
type Archiver interface {
	Archive(documentID string, versionNumber int, content string) (string, error)
}

var _ Archiver = (*snapshot.Archiver)(nil)

// Store ties together document_versions persistence with the document
// store, change log, and user contribution aggregate. Archiver is optional:
// a nil Archiver simply skips S3 archival, per the "durable-but-optional"
// policy.
type Store struct {
	db            *sql.DB
	docs          docstore.Store
	changes       changelog.Store
	contributions contribution.Store
	archiver      Archiver
}

func NewStore(db *sql.DB, docs docstore.Store, changes changelog.Store, contributions contribution.Store, archiver Archiver) *Store {
	return &Store{
		db:            db,
		docs:          docs,
		changes:       changes,
		contributions: contributions,
		archiver:      archiver,
	}
}

// CreateInitial creates version 0 at document creation time.
func (s *Store) CreateInitial(ctx context.Context, documentID, content, userID string) (*Version, error) {
	v, err := s.insertVersion(ctx, documentID, 0, content, userID, "Initial version")
	if err != nil {
		return nil, err
	}
	if err := s.contributions.RecordVersion(ctx, documentID, userID, utf8.RuneCountInString(content), 0); err != nil {
		log.Printf("version: failed to record contribution for %s/%s: %v", documentID, userID, err)
	}
	return v, nil
}

// Create appends the next version number. It rejects with NO_CHANGES if the
// normalized new content equals the latest stored content and no
// unversioned changes exist. On success it links every unversioned
// change-log entry for the document to the new version and records the
// contribution delta.
func (s *Store) Create(ctx context.Context, documentID, content, userID, description string) (*Version, error) {
	latest, err := s.latest(ctx, documentID)
	if err != nil {
		return nil, err
	}

	unversioned, err := s.changes.ListUnversioned(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("version: list unversioned: %w", err)
	}

	if latest != nil && normalize(latest.Content) == normalize(content) && len(unversioned) == 0 {
		return nil, fmt.Errorf("document %s content unchanged: %w", documentID, apperr.ErrNoChanges)
	}

	nextNumber := 0
	if latest != nil {
		nextNumber = latest.VersionNumber + 1
	}
	if description == "" {
		description = fmt.Sprintf("Version %d", nextNumber)
	}

	v, err := s.insertVersion(ctx, documentID, nextNumber, content, userID, description)
	if err != nil {
		return nil, err
	}

	if err := s.changes.LinkUnversionedToVersion(ctx, documentID, v.ID); err != nil {
		log.Printf("version: failed to link unversioned changes for %s: %v", documentID, err)
	}

	charsAdded, charsDeleted := 0, 0
	if latest != nil {
		charsAdded, charsDeleted = characterChurn(latest.Content, content)
	} else {
		charsAdded = utf8.RuneCountInString(content)
	}
	if err := s.contributions.RecordVersion(ctx, documentID, userID, charsAdded, charsDeleted); err != nil {
		log.Printf("version: failed to record contribution for %s/%s: %v", documentID, userID, err)
	}

	s.archive(v)
	return v, nil
}

// Revert never deletes or overwrites existing versions: it updates the
// document store's content to the target version's content, evicts the
// in-memory session, and creates a new version describing the restore.
func (s *Store) Revert(ctx context.Context, documentID string, targetVersionNumber int, userID string) (*Version, error) {
	target, err := s.byNumber(ctx, documentID, targetVersionNumber)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("version %d of document %s: %w", targetVersionNumber, documentID, apperr.ErrDocumentNotFound)
	}

	if err := s.docs.UpdateContent(ctx, documentID, target.Content); err != nil {
		return nil, fmt.Errorf("version: revert update content: %w", err)
	}
	s.docs.ResetSession(documentID)

	description := fmt.Sprintf("Restored from version %d", targetVersionNumber)
	return s.Create(ctx, documentID, target.Content, userID, description)
}

// List returns versions newest first.
func (s *Store) List(ctx context.Context, documentID string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, version_number, content, created_by, created_at, change_description
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("version: list: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Content, &v.CreatedBy, &v.CreatedAt, &v.ChangeDescription); err != nil {
			log.Printf("version: scan: %v", err)
			continue
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) latest(ctx context.Context, documentID string) (*Version, error) {
	var v Version
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, version_number, content, created_by, created_at, change_description
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
		LIMIT 1
	`, documentID).Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Content, &v.CreatedBy, &v.CreatedAt, &v.ChangeDescription)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("version: latest: %w", err)
	}
	return &v, nil
}

func (s *Store) byNumber(ctx context.Context, documentID string, number int) (*Version, error) {
	var v Version
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, version_number, content, created_by, created_at, change_description
		FROM document_versions
		WHERE document_id = $1 AND version_number = $2
	`, documentID, number).Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Content, &v.CreatedBy, &v.CreatedAt, &v.ChangeDescription)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("version: by number: %w", err)
	}
	return &v, nil
}

func (s *Store) insertVersion(ctx context.Context, documentID string, number int, content, userID, description string) (*Version, error) {
	v := &Version{
		DocumentID:        documentID,
		VersionNumber:     number,
		Content:           content,
		CreatedBy:         userID,
		ChangeDescription: description,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO document_versions (document_id, version_number, content, created_by, created_at, change_description)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		RETURNING id, created_at
	`, documentID, number, content, userID, description).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("version: insert: %w", err)
	}
	return v, nil
}

func (s *Store) archive(v *Version) {
	if s.archiver == nil {
		return
	}
	if _, err := s.archiver.Archive(v.DocumentID, v.VersionNumber, v.Content); err != nil {
		log.Printf("version: S3 archive failed for %s v%d: %v", v.DocumentID, v.VersionNumber, err)
	}
}

func normalize(content string) string {
	return strings.TrimRight(content, "\n")
}

// characterChurn computes a naive added/removed character count, the same
// line-diff machinery Diff uses, run once at creation time rather than on
// demand.
func characterChurn(before, after string) (added, removed int) {
	matcher := difflib.NewMatcher(difflib.SplitLines(before), difflib.SplitLines(after))
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'i':
			added += runeCountLines(difflib.SplitLines(after)[op.J1:op.J2])
		case 'd':
			removed += runeCountLines(difflib.SplitLines(before)[op.I1:op.I2])
		case 'r':
			removed += runeCountLines(difflib.SplitLines(before)[op.I1:op.I2])
			added += runeCountLines(difflib.SplitLines(after)[op.J1:op.J2])
		}
	}
	return added, removed
}

func runeCountLines(lines []string) int {
	n := 0
	for _, l := range lines {
		n += utf8.RuneCountInString(l)
	}
	return n
}
