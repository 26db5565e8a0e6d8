package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Extraction failures fall in exactly two classes: permanent (the document
// itself cannot be parsed) and transient (the engine could not be reached and
// the attempt may be retried).
var (
	ErrUnreadableDocument = errors.New("UnreadableDocument")
	ErrEngineUnavailable  = errors.New("EngineUnavailable")
)

// Unreadable wraps err as a permanent extraction failure.
func Unreadable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
}

// Unavailable wraps err as a transient extraction failure.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
}

// Reason maps an extraction error to its terminal reason string.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrEngineUnavailable):
		return "EngineUnavailable"
	default:
		return "UnreadableDocument"
	}
}

// Fields is the structured record extracted from one certificate document.
type Fields struct {
	Issuer    string     `json:"issuer,omitempty"`
	Title     string     `json:"title,omitempty"`
	Recipient string     `json:"recipient,omitempty"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	IssuedAt  *time.Time `json:"issuedAt,omitempty"`
	Skills    []string   `json:"skills,omitempty"`
	Academic  bool       `json:"academic,omitempty"`
	RawText   string     `json:"rawText,omitempty"`
}

// Engine turns certificate bytes into structured fields.
type Engine interface {
	Extract(ctx context.Context, data []byte, mimeType string) (Fields, error)
}

// OCR recognizes text in image payloads. It is a pluggable capability; the
// default engine has none configured.
type OCR interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}
