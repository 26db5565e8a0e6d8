package sessions

import (
	"time"

	"certiresume-backend/resume/model"
)

// Session groups one batch of certificate uploads under a resume-building
// task. Draft is nil until the first assembly or user edit.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Draft     *model.Draft `json:"draft,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Expired reports whether the session's TTL has elapsed.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
