package certificates

import (
	"context"
	"sort"
	"sync"
	"time"

	"certiresume-backend/internal/extraction"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	positions map[string]int // sessionId -> last assigned position
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		entries:   make(map[string]Entry),
		positions: make(map[string]int),
	}
}

// Create stores a new entry, assigning its upload position within the session.
func (r *MemoryRepo) Create(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.positions[entry.SessionID]++
	entry.Position = r.positions[entry.SessionID]
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.entries[entry.ID] = entry
	return entry, nil
}

// GetByID returns an entry by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, entryID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[entryID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// ListBySession returns entries ordered by upload position.
func (r *MemoryRepo) ListBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, 4)
	for _, entry := range r.entries {
		if entry.SessionID == sessionID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Transition moves an entry to status to, provided its current status is one of from.
func (r *MemoryRepo) Transition(ctx context.Context, entryID string, from []Status, to Status) (Entry, error) {
	return r.mutate(ctx, entryID, from, func(entry *Entry) {
		entry.Status = to
	})
}

// UpdateProgress raises progress for an uploading entry.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, entryID string, pct int) (Entry, error) {
	return r.mutate(ctx, entryID, []Status{StatusUploading}, func(entry *Entry) {
		if pct > entry.Progress {
			entry.Progress = pct
		}
	})
}

// SetCompleted stores extracted fields and moves processing -> completed.
func (r *MemoryRepo) SetCompleted(ctx context.Context, entryID string, fields extraction.Fields) (Entry, error) {
	return r.mutate(ctx, entryID, []Status{StatusProcessing}, func(entry *Entry) {
		entry.Status = StatusCompleted
		entry.Extracted = &fields
	})
}

// SetFailed stores the error reason and moves any of from -> failed.
func (r *MemoryRepo) SetFailed(ctx context.Context, entryID string, reason string, from []Status) (Entry, error) {
	return r.mutate(ctx, entryID, from, func(entry *Entry) {
		entry.Status = StatusFailed
		entry.ErrorReason = reason
	})
}

// SetStorageKey records where the uploaded bytes were stored.
func (r *MemoryRepo) SetStorageKey(ctx context.Context, entryID string, storageKey string) error {
	_, err := r.mutate(ctx, entryID, nil, func(entry *Entry) {
		entry.StorageKey = storageKey
	})
	return err
}

// Delete removes an entry, provided its current status is one of from.
func (r *MemoryRepo) Delete(ctx context.Context, entryID string, from []Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	if len(from) > 0 && !statusIn(entry.Status, from) {
		return ErrInvalidTransition
	}
	delete(r.entries, entryID)
	return nil
}

// DeleteBySession removes every entry belonging to a session.
func (r *MemoryRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.entries {
		if entry.SessionID == sessionID {
			delete(r.entries, id)
		}
	}
	delete(r.positions, sessionID)
	return nil
}

func (r *MemoryRepo) mutate(ctx context.Context, entryID string, from []Status, apply func(*Entry)) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if len(from) > 0 && !statusIn(entry.Status, from) {
		return Entry{}, ErrInvalidTransition
	}
	apply(&entry)
	entry.UpdatedAt = time.Now().UTC()
	r.entries[entryID] = entry
	return entry, nil
}

func statusIn(status Status, set []Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

var _ Repo = (*MemoryRepo)(nil)
