package decode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dunamismax/rasterflow/internal/raster"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Bounds are the natural dimensions of a compressed image.
type Bounds struct {
	Width  int
	Height int
}

// Codec is the platform decoder. DecodeBounds must not materialize pixel data.
// Decode returns a raster at roughly 1/sample of the natural size, never
// smaller than floor(natural/sample) on either axis.
type Codec interface {
	DecodeBounds(data []byte) (Bounds, error)
	Decode(data []byte, sample int, format raster.PixelFormat, budget *raster.Budget) (*raster.Raster, error)
}

// StdCodec decodes with the image package and the x/image format
// registrations. Sampling happens after a full decode, so the natural-size
// working buffer is reserved against the budget for the whole call.
type StdCodec struct{}

func (StdCodec) DecodeBounds(data []byte) (Bounds, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Bounds{}, fmt.Errorf("read bounds: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Bounds{}, fmt.Errorf("read bounds: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return Bounds{Width: cfg.Width, Height: cfg.Height}, nil
}

func (c StdCodec) Decode(data []byte, sample int, format raster.PixelFormat, budget *raster.Budget) (*raster.Raster, error) {
	if sample < 1 {
		sample = 1
	}

	bounds, err := c.DecodeBounds(data)
	if err != nil {
		return nil, err
	}
	working, err := raster.SizeOf(bounds.Width, bounds.Height, 4)
	if err != nil {
		return nil, err
	}
	if err := budget.Reserve(working); err != nil {
		return nil, err
	}
	defer budget.Free(working)

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if sample == 1 {
		return raster.FromImage(budget, src, format)
	}
	return sampleDown(budget, src, sample, format)
}
