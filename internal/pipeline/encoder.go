package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/dunamismax/rasterflow/internal/raster"
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

type Encoder interface {
	Encode(r *raster.Raster, format string, quality int) ([]byte, error)
	// Supports reports whether Encode can write the normalized format.
	Supports(format string) bool
}

func normalizeOutputFormat(format string) string {
	switch format {
	case "jpg":
		return "jpeg"
	case "jpeg", "png", "webp":
		return format
	default:
		return "png"
	}
}

// outputFormat picks the encoded format for a rendered raster. Without an
// explicit choice the source format is kept when enc can write it and PNG
// is used otherwise. Rounded output needs an alpha channel and is always
// PNG. An explicit format enc cannot write is an invalid request.
func outputFormat(enc Encoder, requested string, source []byte, rounded bool) (string, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" {
		format := normalizeOutputFormat(requested)
		if !enc.Supports(format) {
			return "", fmt.Errorf("%w: %w: %s", ErrInvalidRequest, ErrUnsupportedFormat, format)
		}
		return format, nil
	}
	if rounded {
		return "png", nil
	}

	_, srcFormat, err := image.DecodeConfig(bytes.NewReader(source))
	if err != nil {
		return "png", nil
	}
	format := normalizeOutputFormat(strings.ToLower(srcFormat))
	if !enc.Supports(format) {
		return "png", nil
	}
	return format, nil
}
