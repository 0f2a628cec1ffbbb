// Package attachment turns uploaded blobs into message-ready content.
package attachment

import (
	"context"

	"github.com/pkg/errors"
)

const (
	TypeImage = "image"
	TypePDF   = "pdf"
	TypeText  = "text"
)

// ErrUnsupportedType is returned for blobs no processor rule covers.
var ErrUnsupportedType = errors.New("unsupported file type")

// File is the processed form of one uploaded blob. Content holds a
// base64 data URL for images and extracted text for everything else.
type File struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	Content      string `json:"content"`
}

// Processor converts an uploaded blob into a File.
type Processor interface {
	Process(ctx context.Context, originalName string, blob []byte) (*File, error)
}
