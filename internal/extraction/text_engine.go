package extraction

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// TextEngine extracts certificate fields from PDF text, or from image text
// when an OCR capability is plugged in.
type TextEngine struct {
	OCR OCR
}

func NewTextEngine(ocr OCR) *TextEngine {
	return &TextEngine{OCR: ocr}
}

// Extract pulls raw text out of the payload and parses it into fields.
func (e *TextEngine) Extract(ctx context.Context, data []byte, mimeType string) (Fields, error) {
	if err := ctx.Err(); err != nil {
		return Fields{}, err
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case mimePDF:
		text, err = extractPDF(data)
		if err != nil {
			return Fields{}, Unreadable(err)
		}
	case mimeJPEG, mimePNG:
		if e.OCR == nil {
			return Fields{}, Unreadable(errors.New("no ocr capability configured"))
		}
		text, err = e.OCR.Recognize(ctx, data, mimeType)
		if err != nil {
			if errors.Is(err, ErrUnreadableDocument) || errors.Is(err, ErrEngineUnavailable) {
				return Fields{}, err
			}
			return Fields{}, Unavailable(err)
		}
	default:
		return Fields{}, Unreadable(errors.New("unsupported mime type: " + mimeType))
	}

	if strings.TrimSpace(text) == "" {
		return Fields{}, Unreadable(errors.New("no text content"))
	}

	return ParseFields(text), nil
}

func extractPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf data")
	}
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
