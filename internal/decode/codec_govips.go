//go:build govips && cgo

package decode

import (
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/rasterflow/internal/raster"
)

// vipsCodec shrinks JPEGs on load; other formats are loaded and then
// reduced, which libvips streams without holding the full frame.
type vipsCodec struct{}

func (vipsCodec) DecodeBounds(data []byte) (Bounds, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return Bounds{}, fmt.Errorf("read bounds: %w", err)
	}
	defer img.Close()

	if img.Width() <= 0 || img.Height() <= 0 {
		return Bounds{}, fmt.Errorf("read bounds: invalid dimensions %dx%d", img.Width(), img.Height())
	}
	return Bounds{Width: img.Width(), Height: img.Height()}, nil
}

func (c vipsCodec) Decode(data []byte, sample int, format raster.PixelFormat, budget *raster.Budget) (*raster.Raster, error) {
	if sample < 1 {
		sample = 1
	}

	bounds, err := c.DecodeBounds(data)
	if err != nil {
		return nil, err
	}

	params := vips.NewImportParams()
	if sample > 1 && vips.DetermineImageType(data) == vips.ImageTypeJPEG {
		params.JpegShrinkFactor.Set(sample)
	}

	img, err := vips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	targetW := max(1, bounds.Width/sample)
	if sample > 1 && img.Width() > targetW {
		if err := img.Resize(float64(targetW)/float64(img.Width()), vips.KernelLinear); err != nil {
			return nil, fmt.Errorf("shrink on load: %w", err)
		}
	}

	working, err := raster.SizeOf(img.Width(), img.Height(), 4)
	if err != nil {
		return nil, err
	}
	if err := budget.Reserve(working); err != nil {
		return nil, err
	}
	defer budget.Free(working)

	goImg, err := img.ToImage(vips.NewDefaultExportParams())
	if err != nil {
		return nil, fmt.Errorf("export decoded image: %w", err)
	}
	return raster.FromImage(budget, goImg, format)
}
