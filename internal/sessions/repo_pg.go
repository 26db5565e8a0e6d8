package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"certiresume-backend/resume/model"
)

// PGRepo implements Repo on Postgres with the draft stored as JSONB.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, session Session) (Session, error) {
	const query = `
INSERT INTO upload_sessions (id, user_id, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, draft, created_at, expires_at`
	return scanSession(r.DB.QueryRowContext(ctx, query, session.ID, session.UserID, session.ExpiresAt))
}

func (r *PGRepo) GetByID(ctx context.Context, sessionID string) (Session, error) {
	const query = `SELECT id, user_id, draft, created_at, expires_at FROM upload_sessions WHERE id = $1`
	session, err := scanSession(r.DB.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return session, err
}

func (r *PGRepo) SaveDraft(ctx context.Context, sessionID string, draft *model.Draft) error {
	var payload any
	if draft != nil {
		data, err := json.Marshal(draft)
		if err != nil {
			return err
		}
		payload = data
	}
	const query = `UPDATE upload_sessions SET draft = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, sessionID, payload)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, sessionID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM upload_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	const query = `DELETE FROM upload_sessions WHERE expires_at < $1 RETURNING id`
	rows, err := r.DB.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

func scanSession(row *sql.Row) (Session, error) {
	var session Session
	var draft sql.NullString
	err := row.Scan(&session.ID, &session.UserID, &draft, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return Session{}, err
	}
	if draft.Valid && draft.String != "" {
		var d model.Draft
		if err := json.Unmarshal([]byte(draft.String), &d); err != nil {
			return Session{}, err
		}
		session.Draft = &d
	}
	return session, nil
}

var _ Repo = (*PGRepo)(nil)
