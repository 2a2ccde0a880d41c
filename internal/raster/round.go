package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/gogpu/gg"
)

const DefaultCornerRadius = 10

// RoundCorners returns a new RGBA raster the size of src in which only the
// pixels inside an anti-aliased rounded rectangle of the given radius keep
// the source colour; everything outside is transparent. src is not modified.
func RoundCorners(src *Raster, cornerRadius int) (*Raster, error) {
	if src == nil || src.Image == nil {
		return nil, errors.New("source raster is required")
	}
	if cornerRadius < 0 {
		return nil, fmt.Errorf("corner radius must be >= 0, got %d", cornerRadius)
	}

	w, h := src.Width(), src.Height()
	dst, err := Allocate(src.budget, w, h, FormatRGBA8888)
	if err != nil {
		return nil, err
	}

	// The rasterizer holds a pixmap and hands back a copy of it.
	maskSize, err := SizeOf(w, h, 8)
	if err != nil {
		dst.Release()
		return nil, err
	}
	if err := src.budget.Reserve(maskSize); err != nil {
		dst.Release()
		return nil, err
	}
	defer src.budget.Free(maskSize)

	mask, err := roundedRectMask(w, h, float64(cornerRadius))
	if err != nil {
		dst.Release()
		return nil, err
	}

	draw.DrawMask(dst.Image, dst.Image.Bounds(), src.Image, src.Image.Bounds().Min, mask, mask.Bounds().Min, draw.Src)
	return dst, nil
}

func roundedRectMask(w, h int, radius float64) (image.Image, error) {
	dc := gg.NewContext(w, h)
	defer dc.Close()

	if radius == 0 {
		dc.DrawRectangle(0, 0, float64(w), float64(h))
	} else {
		dc.DrawRoundedRectangle(0, 0, float64(w), float64(h), radius)
	}
	dc.SetRGBA(1, 1, 1, 1)
	if err := dc.Fill(); err != nil {
		return nil, fmt.Errorf("fill rounded rect mask: %w", err)
	}
	return dc.Image(), nil
}
