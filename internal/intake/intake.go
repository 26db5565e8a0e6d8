package intake

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"certiresume-backend/internal/shared/util"
)

// Validation failures surfaced verbatim to the caller; never retried.
var (
	ErrOversizeFile      = errors.New("OversizeFile")
	ErrUnsupportedFormat = errors.New("UnsupportedFormat")
)

// Accepted describes a file that passed intake validation.
type Accepted struct {
	ID        string
	FileName  string
	MimeType  string
	SizeBytes int64
}

var acceptedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// Validator screens declared file metadata before an entry is created.
type Validator struct {
	MaxBytes int64
}

// NewValidator constructs a Validator with the given size ceiling.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Validator{MaxBytes: maxBytes}
}

// Validate screens a declared name/type/size and allocates an entry id on success.
// It has no side effects beyond id allocation; the caller builds the registry
// entry from the accepted descriptor.
func (v *Validator) Validate(fileName, mimeType string, sizeBytes int64) (Accepted, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Accepted{}, ErrUnsupportedFormat
	}

	if sizeBytes <= 0 || sizeBytes > v.MaxBytes {
		return Accepted{}, ErrOversizeFile
	}

	normalized := NormalizeMimeType(mimeType, sanitized)
	if _, ok := acceptedMimeTypes[normalized]; !ok {
		return Accepted{}, ErrUnsupportedFormat
	}

	return Accepted{
		ID:        uuid.NewString(),
		FileName:  sanitized,
		MimeType:  normalized,
		SizeBytes: sizeBytes,
	}, nil
}

// NormalizeMimeType cleans a declared mime type, falling back to the file
// extension when the declaration is empty or generic.
func NormalizeMimeType(mimeType, fileName string) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case "image/jpg":
		return "image/jpeg"
	case "", "application/octet-stream":
		return mimeFromExtension(fileName)
	default:
		return clean
	}
}

func mimeFromExtension(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return ""
	}
}
