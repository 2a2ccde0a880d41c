//go:build govips && cgo

package pipeline

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/rasterflow/internal/raster"
)

// govipsEncoder hands jpeg/png to the stdlib encoder and uses libvips for
// webp, loading the raster through a lossless PNG intermediate.
type govipsEncoder struct {
	fallback stdlibEncoder
}

func (e govipsEncoder) Supports(format string) bool {
	return format == "webp" || e.fallback.Supports(format)
}

func (e govipsEncoder) Encode(r *raster.Raster, format string, quality int) ([]byte, error) {
	if format != "webp" {
		return e.fallback.Encode(r, format, quality)
	}

	lossless, err := e.fallback.Encode(r, "png", 0)
	if err != nil {
		return nil, err
	}

	img, err := vips.NewImageFromBuffer(lossless)
	if err != nil {
		return nil, fmt.Errorf("load raster into vips: %w", err)
	}
	defer img.Close()

	params := vips.NewWebpExportParams()
	if quality > 0 && quality <= 100 {
		params.Quality = quality
	}
	data, _, err := img.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return data, nil
}
