package certificates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"certiresume-backend/internal/extraction"
)

// PGRepo implements Repo using Postgres. Status guards are enforced inside the
// UPDATE statements so transitions stay atomic under concurrent writers.
type PGRepo struct {
	DB *sql.DB
}

const entryColumns = `id, session_id, position, file_name, mime_type, size_bytes, status, progress, storage_key, extracted, error_reason, created_at, updated_at`

// Create stores a new entry, assigning its upload position within the session.
func (r *PGRepo) Create(ctx context.Context, entry Entry) (Entry, error) {
	const query = `
INSERT INTO certificate_entries (id, session_id, position, file_name, mime_type, size_bytes, status, progress)
VALUES ($1, $2,
        (SELECT COALESCE(MAX(position), 0) + 1 FROM certificate_entries WHERE session_id = $2),
        $3, $4, $5, $6, 0)
RETURNING ` + entryColumns
	row := r.DB.QueryRowContext(ctx, query,
		entry.ID,
		entry.SessionID,
		entry.FileName,
		entry.MimeType,
		entry.SizeBytes,
		string(entry.Status),
	)
	return scanEntry(row)
}

// GetByID returns an entry by ID.
func (r *PGRepo) GetByID(ctx context.Context, entryID string) (Entry, error) {
	const query = `SELECT ` + entryColumns + ` FROM certificate_entries WHERE id = $1 LIMIT 1`
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// ListBySession returns entries ordered by upload position.
func (r *PGRepo) ListBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	const query = `SELECT ` + entryColumns + ` FROM certificate_entries WHERE session_id = $1 ORDER BY position`
	rows, err := r.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0, 4)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Transition moves an entry to status to, provided its current status is one of from.
func (r *PGRepo) Transition(ctx context.Context, entryID string, from []Status, to Status) (Entry, error) {
	const query = `
UPDATE certificate_entries
SET status = $2, updated_at = now()
WHERE id = $1 AND status = ANY(string_to_array($3, ','))
RETURNING ` + entryColumns
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, entryID, string(to), joinStatuses(from)))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, r.guardMiss(ctx, entryID)
	}
	return entry, err
}

// UpdateProgress raises progress for an uploading entry.
func (r *PGRepo) UpdateProgress(ctx context.Context, entryID string, pct int) (Entry, error) {
	const query = `
UPDATE certificate_entries
SET progress = GREATEST(progress, $2), updated_at = now()
WHERE id = $1 AND status = 'uploading'
RETURNING ` + entryColumns
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, entryID, pct))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, r.guardMiss(ctx, entryID)
	}
	return entry, err
}

// SetCompleted stores extracted fields and moves processing -> completed.
func (r *PGRepo) SetCompleted(ctx context.Context, entryID string, fields extraction.Fields) (Entry, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return Entry{}, err
	}
	const query = `
UPDATE certificate_entries
SET status = 'completed', extracted = $2, updated_at = now()
WHERE id = $1 AND status = 'processing'
RETURNING ` + entryColumns
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, entryID, payload))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, r.guardMiss(ctx, entryID)
	}
	return entry, err
}

// SetFailed stores the error reason and moves any of from -> failed.
func (r *PGRepo) SetFailed(ctx context.Context, entryID string, reason string, from []Status) (Entry, error) {
	const query = `
UPDATE certificate_entries
SET status = 'failed', error_reason = $2, updated_at = now()
WHERE id = $1 AND status = ANY(string_to_array($3, ','))
RETURNING ` + entryColumns
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, entryID, reason, joinStatuses(from)))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, r.guardMiss(ctx, entryID)
	}
	return entry, err
}

// SetStorageKey records where the uploaded bytes were stored.
func (r *PGRepo) SetStorageKey(ctx context.Context, entryID string, storageKey string) error {
	const query = `UPDATE certificate_entries SET storage_key = $2, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, entryID, storageKey)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry, provided its current status is one of from.
func (r *PGRepo) Delete(ctx context.Context, entryID string, from []Status) error {
	const query = `DELETE FROM certificate_entries WHERE id = $1 AND status = ANY(string_to_array($2, ','))`
	res, err := r.DB.ExecContext(ctx, query, entryID, joinStatuses(from))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return r.guardMiss(ctx, entryID)
	}
	return nil
}

// DeleteBySession removes every entry belonging to a session.
func (r *PGRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM certificate_entries WHERE session_id = $1`
	_, err := r.DB.ExecContext(ctx, query, sessionID)
	return err
}

// guardMiss distinguishes a missing entry from a status-guard failure.
func (r *PGRepo) guardMiss(ctx context.Context, entryID string) error {
	if _, err := r.GetByID(ctx, entryID); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return ErrInvalidTransition
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var status string
	var storageKey sql.NullString
	var extracted sql.NullString
	var errorReason sql.NullString
	err := row.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.Position,
		&entry.FileName,
		&entry.MimeType,
		&entry.SizeBytes,
		&status,
		&entry.Progress,
		&storageKey,
		&extracted,
		&errorReason,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	entry.Status = Status(status)
	if storageKey.Valid {
		entry.StorageKey = storageKey.String
	}
	if errorReason.Valid {
		entry.ErrorReason = errorReason.String
	}
	if extracted.Valid && extracted.String != "" {
		var fields extraction.Fields
		if err := json.Unmarshal([]byte(extracted.String), &fields); err != nil {
			return Entry{}, err
		}
		entry.Extracted = &fields
	}
	return entry, nil
}

func joinStatuses(set []Status) string {
	parts := make([]string, 0, len(set))
	for _, s := range set {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

var _ Repo = (*PGRepo)(nil)
