package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/dunamismax/rasterflow/internal/raster"
)

type stdlibEncoder struct{}

func (stdlibEncoder) Supports(format string) bool {
	return format == "jpeg" || format == "png"
}

func (stdlibEncoder) Encode(r *raster.Raster, format string, quality int) ([]byte, error) {
	if r == nil || r.Image == nil {
		return nil, errors.New("raster is required")
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		if err := jpeg.Encode(&buf, r.Image, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case "png":
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, r.Image); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}
