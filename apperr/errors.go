// Package apperr defines the sentinel error values shared across the
// collaborative editing core. Callers wrap these with fmt.Errorf("...: %w")
// so context survives while errors.Is still matches the taxonomy.
package apperr

import "errors"

var (
	ErrInvalidOperation            = errors.New("INVALID_OPERATION")
	ErrUnauthorized                = errors.New("UNAUTHORIZED")
	ErrDocumentNotFound            = errors.New("DOCUMENT_NOT_FOUND")
	ErrNoChanges                   = errors.New("NO_CHANGES")
	ErrTransientPersistenceFailure = errors.New("TRANSIENT_PERSISTENCE_FAILURE")
	ErrInternal                    = errors.New("INTERNAL")
)
