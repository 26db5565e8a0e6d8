package queue

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"certiresume-backend/internal/certificates"
	"certiresume-backend/internal/shared/storage/object"
	"certiresume-backend/internal/shared/telemetry"
)

// Dispatcher routes accepted entries through the queue instead of an
// in-process pool: it persists the payload, advances the entry to
// processing, and hands the rest to a consumer via SQS.
type Dispatcher struct {
	Registry *certificates.Registry
	Store    object.ObjectStore
	Client   Client
}

func NewDispatcher(registry *certificates.Registry, store object.ObjectStore, client Client) *Dispatcher {
	return &Dispatcher{Registry: registry, Store: store, Client: client}
}

func (d *Dispatcher) Dispatch(ctx context.Context, entry certificates.Entry, data []byte) error {
	if _, err := d.Registry.MarkQueued(ctx, entry.ID); err != nil {
		return err
	}
	if _, err := d.Registry.StartUploading(ctx, entry.ID); err != nil {
		return err
	}

	storageKey := entry.ObjectKey()
	if _, err := d.Store.SaveWithKey(ctx, storageKey, entry.MimeType, bytes.NewReader(data)); err != nil {
		_, _ = d.Registry.MarkFailed(ctx, entry.ID, "UnreadableDocument")
		return fmt.Errorf("store payload: %w", err)
	}
	if err := d.Registry.SetStorageKey(ctx, entry.ID, storageKey); err != nil {
		return err
	}
	if _, err := d.Registry.MarkProcessing(ctx, entry.ID); err != nil {
		return err
	}

	msg := Message{
		EntryID:    entry.ID,
		SessionID:  entry.SessionID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := d.Client.Send(ctx, msg); err != nil {
		_, _ = d.Registry.MarkFailed(ctx, entry.ID, "EngineUnavailable")
		return fmt.Errorf("enqueue entry: %w", err)
	}
	telemetry.Info("queue.dispatched", map[string]any{
		"entry_id":   entry.ID,
		"session_id": entry.SessionID,
	})
	return nil
}

// Cancel marks the entry cancelling; the consumer finalizes when it next
// sees the entry.
func (d *Dispatcher) Cancel(ctx context.Context, entryID string) error {
	_, err := d.Registry.RequestCancel(ctx, entryID)
	return err
}
