package certificates

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"certiresume-backend/internal/extraction"
	"certiresume-backend/internal/shared/metrics"
	"certiresume-backend/internal/shared/telemetry"
)

// Registry tracks every certificate entry through its lifecycle. All status
// changes go through guarded repo operations, so an invalid move is rejected
// instead of silently overwriting a newer state.
type Registry struct {
	repo Repo
}

func NewRegistry(repo Repo) *Registry {
	return &Registry{repo: repo}
}

// AddEntry registers an accepted upload for a session.
func (r *Registry) AddEntry(ctx context.Context, sessionID, fileName, mimeType string, sizeBytes int64) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		Status:    StatusAccepted,
	}
	created, err := r.repo.Create(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	r.logTransition(created, "", StatusAccepted)
	return created, nil
}

func (r *Registry) Get(ctx context.Context, entryID string) (Entry, error) {
	return r.repo.GetByID(ctx, entryID)
}

func (r *Registry) ListBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	return r.repo.ListBySession(ctx, sessionID)
}

// MarkQueued moves accepted -> queued.
func (r *Registry) MarkQueued(ctx context.Context, entryID string) (Entry, error) {
	return r.transition(ctx, entryID, []Status{StatusAccepted}, StatusQueued)
}

// StartUploading moves queued -> uploading.
func (r *Registry) StartUploading(ctx context.Context, entryID string) (Entry, error) {
	return r.transition(ctx, entryID, []Status{StatusQueued}, StatusUploading)
}

// UpdateProgress raises the upload percentage. Progress never decreases and
// only applies while the entry is uploading.
func (r *Registry) UpdateProgress(ctx context.Context, entryID string, pct int) (Entry, error) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return r.repo.UpdateProgress(ctx, entryID, pct)
}

// MarkProcessing moves uploading -> processing and pins progress at 100.
func (r *Registry) MarkProcessing(ctx context.Context, entryID string) (Entry, error) {
	if _, err := r.repo.UpdateProgress(ctx, entryID, 100); err != nil {
		return Entry{}, err
	}
	return r.transition(ctx, entryID, []Status{StatusUploading}, StatusProcessing)
}

// MarkCompleted stores the extracted fields. Only a processing entry can
// complete, so a cancelled or failed entry is never resurrected.
func (r *Registry) MarkCompleted(ctx context.Context, entryID string, fields extraction.Fields) (Entry, error) {
	entry, err := r.repo.SetCompleted(ctx, entryID, fields)
	if err != nil {
		return Entry{}, err
	}
	metrics.IncExtractionCompleted()
	r.logTransition(entry, StatusProcessing, StatusCompleted)
	return entry, nil
}

// MarkFailed records a failure reason for an in-flight entry.
func (r *Registry) MarkFailed(ctx context.Context, entryID string, reason string) (Entry, error) {
	entry, err := r.repo.SetFailed(ctx, entryID, reason, []Status{StatusQueued, StatusUploading, StatusProcessing})
	if err != nil {
		return Entry{}, err
	}
	metrics.IncExtractionFailed()
	r.logTransition(entry, "", StatusFailed)
	return entry, nil
}

// RequestCancel moves an in-flight entry to cancelling.
func (r *Registry) RequestCancel(ctx context.Context, entryID string) (Entry, error) {
	return r.transition(ctx, entryID, []Status{StatusQueued, StatusUploading, StatusProcessing}, StatusCancelling)
}

// MarkCancelled completes a cancellation once the worker has stopped.
func (r *Registry) MarkCancelled(ctx context.Context, entryID string) (Entry, error) {
	entry, err := r.transition(ctx, entryID, []Status{StatusCancelling}, StatusCancelled)
	if err != nil {
		return Entry{}, err
	}
	metrics.IncExtractionCancelled()
	return entry, nil
}

// SetStorageKey records where the uploaded file was stored.
func (r *Registry) SetStorageKey(ctx context.Context, entryID string, storageKey string) error {
	return r.repo.SetStorageKey(ctx, entryID, storageKey)
}

// Remove deletes an entry that is not being worked on. Removing an uploading
// or processing entry instead requests cancellation and reports
// ErrCancellationPending so the caller knows removal is deferred.
func (r *Registry) Remove(ctx context.Context, entryID string) error {
	err := r.repo.Delete(ctx, entryID, RemovableStatuses())
	if err == nil || !errors.Is(err, ErrInvalidTransition) {
		return err
	}
	entry, getErr := r.repo.GetByID(ctx, entryID)
	if getErr != nil {
		return getErr
	}
	switch entry.Status {
	case StatusCancelling:
		return ErrCancellationPending
	case StatusUploading, StatusProcessing:
		if _, err := r.RequestCancel(ctx, entryID); err != nil {
			return err
		}
		return ErrCancellationPending
	default:
		return ErrInvalidTransition
	}
}

// RemoveBySession deletes every entry belonging to a session.
func (r *Registry) RemoveBySession(ctx context.Context, sessionID string) error {
	return r.repo.DeleteBySession(ctx, sessionID)
}

func (r *Registry) transition(ctx context.Context, entryID string, from []Status, to Status) (Entry, error) {
	entry, err := r.repo.Transition(ctx, entryID, from, to)
	if err != nil {
		return Entry{}, err
	}
	var fromStatus Status
	if len(from) == 1 {
		fromStatus = from[0]
	}
	r.logTransition(entry, fromStatus, to)
	return entry, nil
}

func (r *Registry) logTransition(entry Entry, from, to Status) {
	telemetry.Info("entry.status", map[string]any{
		"entry_id":   entry.ID,
		"session_id": entry.SessionID,
		"from":       string(from),
		"to":         string(to),
	})
}
