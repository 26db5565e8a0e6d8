// Package render turns a draft resume and a template id into a
// template-agnostic document description. It performs no I/O.
package render

import (
	"errors"

	"certiresume-backend/resume/model"
)

// ErrUnknownTemplate is returned when the template id is not registered.
var ErrUnknownTemplate = errors.New("UnknownTemplate")

type SectionKind string

const (
	SectionParagraph SectionKind = "paragraph"
	SectionBullets   SectionKind = "bullets"
	SectionPairs     SectionKind = "pairs"
)

type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Section is one ordered block of the rendered document. Exactly one of
// Paragraph, Bullets, or Pairs is populated according to Kind.
type Section struct {
	Title     string      `json:"title"`
	Kind      SectionKind `json:"kind"`
	Paragraph string      `json:"paragraph,omitempty"`
	Bullets   []string    `json:"bullets,omitempty"`
	Pairs     []Pair      `json:"pairs,omitempty"`
}

// Document is the immutable render-ready output for one (draft, template)
// pair. It is recomputed on demand and never mutated.
type Document struct {
	TemplateID string    `json:"templateId"`
	Sections   []Section `json:"sections"`
}

type layout func(draft model.Draft) []Section

// Renderer holds the configured template set.
type Renderer struct {
	layouts map[string]layout
}

// NewRenderer registers the requested template ids. Ids without a known
// layout are ignored, so a misconfigured set degrades to fewer templates
// rather than a broken renderer.
func NewRenderer(templateIDs []string) *Renderer {
	known := map[string]layout{
		"modern":   modernLayout,
		"classic":  classicLayout,
		"creative": creativeLayout,
	}
	layouts := make(map[string]layout, len(templateIDs))
	for _, id := range templateIDs {
		if l, ok := known[id]; ok {
			layouts[id] = l
		}
	}
	return &Renderer{layouts: layouts}
}

// Templates lists the registered template ids.
func (r *Renderer) Templates() []string {
	out := make([]string, 0, len(r.layouts))
	for _, id := range []string{"modern", "classic", "creative"} {
		if _, ok := r.layouts[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Render produces the document for templateID, or ErrUnknownTemplate.
func (r *Renderer) Render(draft model.Draft, templateID string) (Document, error) {
	l, ok := r.layouts[templateID]
	if !ok {
		return Document{}, ErrUnknownTemplate
	}
	return Document{TemplateID: templateID, Sections: l(draft)}, nil
}
