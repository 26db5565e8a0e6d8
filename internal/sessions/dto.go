package sessions

import (
	"time"

	"certiresume-backend/resume/model"
)

// draftResponse is the wire shape of a draft. Skills are presented as one
// merged, deduplicated list, user-added skills after assembled ones; the
// split behind that list stays server-side.
type draftResponse struct {
	FullName   model.Field        `json:"fullName"`
	Email      model.Field        `json:"email"`
	Phone      model.Field        `json:"phone"`
	Summary    model.Field        `json:"summary"`
	Skills     []string           `json:"skills"`
	Experience []model.Credential `json:"experience"`
	Education  []model.Credential `json:"education"`
	TemplateID string             `json:"templateId,omitempty"`
}

func newDraftResponse(d model.Draft) draftResponse {
	return draftResponse{
		FullName:   d.FullName,
		Email:      d.Email,
		Phone:      d.Phone,
		Summary:    d.Summary,
		Skills:     d.AllSkills(),
		Experience: d.Experience,
		Education:  d.Education,
		TemplateID: d.TemplateID,
	}
}

type sessionResponse struct {
	ID        string         `json:"id"`
	Draft     *draftResponse `json:"draft,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

func newSessionResponse(s Session) sessionResponse {
	resp := sessionResponse{ID: s.ID, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt}
	if s.Draft != nil {
		draft := newDraftResponse(*s.Draft)
		resp.Draft = &draft
	}
	return resp
}
