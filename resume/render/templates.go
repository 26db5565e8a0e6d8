package render

import (
	"strings"

	"certiresume-backend/resume/model"
)

func modernLayout(draft model.Draft) []Section {
	sections := []Section{contactSection(draft)}
	if draft.Summary.Value != "" {
		sections = append(sections, Section{
			Title:     "Summary",
			Kind:      SectionParagraph,
			Paragraph: draft.Summary.Value,
		})
	}
	if skills := draft.AllSkills(); len(skills) > 0 {
		sections = append(sections, Section{Title: "Skills", Kind: SectionBullets, Bullets: skills})
	}
	sections = appendCredentialSections(sections, draft)
	return sections
}

func classicLayout(draft model.Draft) []Section {
	var sections []Section
	if draft.Summary.Value != "" {
		sections = append(sections, Section{
			Title:     "Professional Summary",
			Kind:      SectionParagraph,
			Paragraph: draft.Summary.Value,
		})
	}
	sections = append(sections, contactSection(draft))
	sections = appendCredentialSections(sections, draft)
	if skills := draft.AllSkills(); len(skills) > 0 {
		sections = append(sections, Section{Title: "Skills", Kind: SectionBullets, Bullets: skills})
	}
	return sections
}

func creativeLayout(draft model.Draft) []Section {
	var sections []Section
	headline := draft.FullName.Value
	if headline != "" && draft.Summary.Value != "" {
		headline += ". " + draft.Summary.Value
	} else if draft.Summary.Value != "" {
		headline = draft.Summary.Value
	}
	if headline != "" {
		sections = append(sections, Section{Title: "About", Kind: SectionParagraph, Paragraph: headline})
	}
	if skills := draft.AllSkills(); len(skills) > 0 {
		sections = append(sections, Section{Title: "Toolbox", Kind: SectionBullets, Bullets: skills})
	}
	sections = appendCredentialSections(sections, draft)
	sections = append(sections, contactSection(draft))
	return sections
}

func contactSection(draft model.Draft) Section {
	pairs := make([]Pair, 0, 3)
	if draft.FullName.Value != "" {
		pairs = append(pairs, Pair{Key: "Name", Value: draft.FullName.Value})
	}
	if draft.Email.Value != "" {
		pairs = append(pairs, Pair{Key: "Email", Value: draft.Email.Value})
	}
	if draft.Phone.Value != "" {
		pairs = append(pairs, Pair{Key: "Phone", Value: draft.Phone.Value})
	}
	return Section{Title: "Contact", Kind: SectionPairs, Pairs: pairs}
}

func appendCredentialSections(sections []Section, draft model.Draft) []Section {
	if len(draft.Experience) > 0 {
		sections = append(sections, Section{
			Title:   "Certifications & Experience",
			Kind:    SectionBullets,
			Bullets: credentialBullets(draft.Experience),
		})
	}
	if len(draft.Education) > 0 {
		sections = append(sections, Section{
			Title:   "Education",
			Kind:    SectionBullets,
			Bullets: credentialBullets(draft.Education),
		})
	}
	return sections
}

func credentialBullets(creds []model.Credential) []string {
	out := make([]string, 0, len(creds))
	for _, cred := range creds {
		var b strings.Builder
		b.WriteString(cred.Title)
		if cred.Issuer != "" {
			b.WriteString(", ")
			b.WriteString(cred.Issuer)
		}
		if cred.IssuedAt != nil {
			b.WriteString(" (")
			b.WriteString(cred.IssuedAt.Format("Jan 2006"))
			b.WriteString(")")
		}
		out = append(out, b.String())
	}
	return out
}
