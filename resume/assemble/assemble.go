// Package assemble merges completed certificate extractions into a draft
// resume without clobbering the user's own edits.
package assemble

import (
	"sort"

	"certiresume-backend/internal/extraction"
	"certiresume-backend/resume/model"
)

// Record is one completed extraction in upload order.
type Record struct {
	Position int
	Fields   extraction.Fields
}

// Assemble merges records into prev and returns the updated draft. Scalars a
// user has edited are never overwritten; everything assembler-derived is
// recomputed from scratch, so running Assemble twice on the same inputs is a
// no-op. Zero records yield a draft with empty lists, not an error.
func Assemble(prev model.Draft, records []Record) model.Draft {
	draft := prev

	byUpload := make([]Record, len(records))
	copy(byUpload, records)
	sort.SliceStable(byUpload, func(i, j int) bool {
		return byUpload[i].Position < byUpload[j].Position
	})

	assignScalar(&draft.FullName, byUpload, func(f extraction.Fields) string { return f.Recipient })
	assignScalar(&draft.Email, byUpload, func(f extraction.Fields) string { return f.Email })
	assignScalar(&draft.Phone, byUpload, func(f extraction.Fields) string { return f.Phone })

	var skills []string
	for _, rec := range byUpload {
		skills = append(skills, rec.Fields.Skills...)
	}
	draft.Skills = model.DedupSkills(skills)

	draft.Experience, draft.Education = buildCredentials(byUpload)
	return draft
}

// assignScalar fills field from the first record supplying a non-empty value,
// unless the user owns the field.
func assignScalar(field *model.Field, records []Record, pick func(extraction.Fields) string) {
	if field.UserEdited {
		return
	}
	field.Value = ""
	for _, rec := range records {
		if v := pick(rec.Fields); v != "" {
			field.Value = v
			return
		}
	}
}

// buildCredentials turns records into experience and education lists, most
// recent first, undated entries last, ties broken by upload order.
func buildCredentials(byUpload []Record) (experience, education []model.Credential) {
	experience = []model.Credential{}
	education = []model.Credential{}
	for _, rec := range byUpload {
		cred := model.Credential{
			Title:    rec.Fields.Title,
			Issuer:   rec.Fields.Issuer,
			IssuedAt: rec.Fields.IssuedAt,
			Skills:   model.DedupSkills(rec.Fields.Skills),
			Position: rec.Position,
		}
		if rec.Fields.Academic {
			education = append(education, cred)
		} else {
			experience = append(experience, cred)
		}
	}
	sortCredentials(experience)
	sortCredentials(education)
	return experience, education
}

func sortCredentials(creds []model.Credential) {
	sort.SliceStable(creds, func(i, j int) bool {
		a, b := creds[i], creds[j]
		switch {
		case a.IssuedAt == nil && b.IssuedAt == nil:
			return a.Position < b.Position
		case a.IssuedAt == nil:
			return false
		case b.IssuedAt == nil:
			return true
		case a.IssuedAt.Equal(*b.IssuedAt):
			return a.Position < b.Position
		default:
			return a.IssuedAt.After(*b.IssuedAt)
		}
	})
}
