package sessions

import (
	"context"
	"time"

	"certiresume-backend/resume/model"
)

// Repo persists upload sessions and their drafts.
type Repo interface {
	Create(ctx context.Context, session Session) (Session, error)
	GetByID(ctx context.Context, sessionID string) (Session, error)
	SaveDraft(ctx context.Context, sessionID string, draft *model.Draft) error
	Delete(ctx context.Context, sessionID string) error
	// DeleteExpired removes sessions past their TTL and returns their ids so
	// the caller can clean up dependent state.
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}
