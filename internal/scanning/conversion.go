package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/heic"
)

// Extensions that are treated as single-page image documents
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".heic": true,
	".heif": true,
}

// IsPDF reports whether a file name looks like a PDF document
func IsPDF(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".pdf"
}

// IsImage reports whether a file name looks like a supported image document
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsSupported reports whether a file name can be processed as a document
func IsSupported(name string) bool {
	return IsPDF(name) || IsImage(name)
}

// imageToPNG converts any supported image format to PNG
func imageToPNG(imageData []byte, name string) ([]byte, error) {
	var img image.Image
	var err error

	ext := strings.ToLower(filepath.Ext(name))
	if isHEICFormat(imageData) || ext == ".heic" || ext == ".heif" {
		// Go's standard image package doesn't support HEIC
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		var format string
		img, format, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		if format == "png" {
			return imageData, nil
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format.
// HEIC files carry an ftyp box at offset 4 with a HEIF-family brand.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
