package images

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// File is an image picked by the user, not yet validated
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Detect sniffs the MIME type from the content itself
func Detect(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsImage reports whether mimeType is image-typed (image/*).
func IsImage(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(mimeType, "image/")
}

// Sniff fills in the MIME type from content when the declared type is empty
// or generic. A declared image type is kept as is.
// Any other declared type is trusted too, image or not.
func (f *File) Sniff() {
	if !isGeneric(f.MIMEType) {
		return
	}
	f.MIMEType = Detect(f.Data)
}

func isGeneric(mimeType string) bool {
	mt, _, _ := strings.Cut(mimeType, ";")
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "", "application/octet-stream":
		return true
	}
	return false
}

// Dimensions decodes width and height without decoding the pixels
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
