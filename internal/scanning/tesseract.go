package scanning

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Recognizer using a local Tesseract installation
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract recognizer for the given languages (e.g. "spa")
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"spa"}
	}
	return &Tesseract{languages: languages}
}

// Recognize runs OCR on a PNG image. A fresh client is used per call since
// gosseract clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, pngData []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("setting tesseract language: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("loading image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return text, nil
}
