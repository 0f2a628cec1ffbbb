package attachment

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Local processes images and plain text in-process. PDF and word
// documents need an external extractor and are rejected with
// ErrUnsupportedType.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Process(ctx context.Context, originalName string, blob []byte) (*File, error) {
	extension := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	file := &File{
		Filename:     generatedName(originalName),
		OriginalName: originalName,
		Size:         int64(len(blob)),
	}

	switch extension {
	case "jpg", "jpeg", "png", "gif":
		file.Type = TypeImage
		file.Content = fmt.Sprintf("data:image/%s;base64,%s", extension, base64.StdEncoding.EncodeToString(blob))
	case "txt":
		file.Type = TypeText
		file.Content = string(blob)
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "extension %q", extension)
	}
	return file, nil
}

func generatedName(originalName string) string {
	return fmt.Sprintf("file-%d%s", time.Now().UnixNano(), filepath.Ext(originalName))
}

var _ Processor = (*Local)(nil)
