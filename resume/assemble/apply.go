package assemble

import (
	"strings"

	"certiresume-backend/resume/model"
)

// Edits is a partial draft update. Nil pointers leave the field untouched;
// ResetFields returns named fields to assembler ownership.
type Edits struct {
	FullName *string   `json:"fullName"`
	Email    *string   `json:"email"`
	Phone    *string   `json:"phone"`
	Summary  *string   `json:"summary"`
	Skills   *[]string `json:"skills"`
	Template *string   `json:"template"`

	ResetFields []string `json:"resetFields"`
}

// ApplyEdits mutates draft with the user's changes. Edited scalars are marked
// user-owned so later assembly runs keep them. The Skills edit replaces the
// user-added skill list; assembler-derived skills are only cleared via a
// "skills" reset.
func ApplyEdits(draft *model.Draft, edits Edits) {
	for _, name := range edits.ResetFields {
		resetField(draft, name)
	}
	applyEdit(&draft.FullName, edits.FullName)
	applyEdit(&draft.Email, edits.Email)
	applyEdit(&draft.Phone, edits.Phone)
	applyEdit(&draft.Summary, edits.Summary)
	if edits.Skills != nil {
		draft.UserSkills = model.DedupSkills(*edits.Skills)
	}
	if edits.Template != nil {
		draft.TemplateID = strings.TrimSpace(*edits.Template)
	}
}

func applyEdit(field *model.Field, value *string) {
	if value == nil {
		return
	}
	field.Value = strings.TrimSpace(*value)
	field.UserEdited = true
}

func resetField(draft *model.Draft, name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fullname":
		draft.FullName = model.Field{}
	case "email":
		draft.Email = model.Field{}
	case "phone":
		draft.Phone = model.Field{}
	case "summary":
		draft.Summary = model.Field{}
	case "skills":
		draft.Skills = nil
		draft.UserSkills = nil
	}
}
