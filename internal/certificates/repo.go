package certificates

import (
	"context"

	"certiresume-backend/internal/extraction"
)

// Repo defines persistence operations for certificate entries. Every guarded
// mutation is atomic: concurrent readers never observe a partially-updated
// entry, and a guard miss reports ErrInvalidTransition (or ErrNotFound when
// the entry does not exist).
type Repo interface {
	// Create stores a new entry, assigning its upload position within the session.
	Create(ctx context.Context, entry Entry) (Entry, error)
	GetByID(ctx context.Context, entryID string) (Entry, error)
	// ListBySession returns entries ordered by upload position.
	ListBySession(ctx context.Context, sessionID string) ([]Entry, error)

	// Transition moves an entry to status to, provided its current status is
	// one of from.
	Transition(ctx context.Context, entryID string, from []Status, to Status) (Entry, error)
	// UpdateProgress raises progress for an uploading entry; decreasing values
	// are clamped so progress stays monotonic.
	UpdateProgress(ctx context.Context, entryID string, pct int) (Entry, error)
	// SetCompleted stores extracted fields and moves processing -> completed.
	SetCompleted(ctx context.Context, entryID string, fields extraction.Fields) (Entry, error)
	// SetFailed stores the error reason and moves any of from -> failed.
	SetFailed(ctx context.Context, entryID string, reason string, from []Status) (Entry, error)
	SetStorageKey(ctx context.Context, entryID string, storageKey string) error

	// Delete removes an entry, provided its current status is one of from.
	Delete(ctx context.Context, entryID string, from []Status) error
	DeleteBySession(ctx context.Context, sessionID string) error
}
