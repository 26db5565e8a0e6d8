// Package model defines the draft resume payload shared by the assembler,
// the renderer, and the HTTP surface.
package model

import (
	"strings"
	"time"
)

// Field is a scalar resume value with provenance. Once the user edits a
// field, assembly runs leave it alone until the user resets it.
type Field struct {
	Value      string `json:"value"`
	UserEdited bool   `json:"userEdited"`
}

// Credential is one extracted certificate rendered into the experience or
// education list.
type Credential struct {
	Title    string     `json:"title"`
	Issuer   string     `json:"issuer,omitempty"`
	IssuedAt *time.Time `json:"issuedAt,omitempty"`
	Skills   []string   `json:"skills,omitempty"`
	// Position is the source entry's upload position, used as the stable
	// tiebreaker when dates are missing or equal.
	Position int `json:"position"`
}

// Draft is the assembled, user-editable resume data for one session.
type Draft struct {
	FullName Field `json:"fullName"`
	Email    Field `json:"email"`
	Phone    Field `json:"phone"`
	Summary  Field `json:"summary"`

	// Skills holds assembler-derived skills in first-seen order; UserSkills
	// holds user-added ones, appended after on render.
	Skills     []string `json:"skills"`
	UserSkills []string `json:"userSkills,omitempty"`

	Experience []Credential `json:"experience"`
	Education  []Credential `json:"education"`

	TemplateID string `json:"templateId,omitempty"`
}

// AllSkills returns assembled skills followed by user-added ones, with
// case-insensitive duplicates removed in first-seen order.
func (d Draft) AllSkills() []string {
	return DedupSkills(append(append([]string{}, d.Skills...), d.UserSkills...))
}

// DedupSkills removes case-insensitive duplicates, keeping the first
// occurrence and its original casing.
func DedupSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		trimmed := strings.TrimSpace(skill)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
