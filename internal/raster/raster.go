package raster

import (
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"
)

// Raster is a decoded pixel buffer. The stage that returns a Raster hands
// over ownership; the receiver calls Release once the pixels are superseded.
type Raster struct {
	Image  draw.Image
	Format PixelFormat

	budget   *Budget
	size     int64
	released atomic.Bool
}

// Allocate reserves width*height pixels of format against b and returns a
// zeroed (fully transparent) raster.
func Allocate(b *Budget, width, height int, format PixelFormat) (*Raster, error) {
	size, err := SizeOf(width, height, format.BytesPerPixel())
	if err != nil {
		return nil, err
	}
	if err := b.Reserve(size); err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, width, height)
	var img draw.Image
	switch format {
	case FormatRGBA8888:
		img = image.NewRGBA(rect)
	case FormatNRGBA8888:
		img = image.NewNRGBA(rect)
	case FormatGray8:
		img = image.NewGray(rect)
	case FormatAlpha8:
		img = image.NewAlpha(rect)
	default:
		b.Free(size)
		return nil, fmt.Errorf("unsupported pixel format %s", format)
	}

	return &Raster{
		Image:  img,
		Format: format,
		budget: b,
		size:   size,
	}, nil
}

// FromImage copies src into a newly allocated raster of the given format.
func FromImage(b *Budget, src image.Image, format PixelFormat) (*Raster, error) {
	bounds := src.Bounds()
	r, err := Allocate(b, bounds.Dx(), bounds.Dy(), format)
	if err != nil {
		return nil, err
	}
	draw.Draw(r.Image, r.Image.Bounds(), src, bounds.Min, draw.Src)
	return r, nil
}

func (r *Raster) Width() int {
	return r.Image.Bounds().Dx()
}

func (r *Raster) Height() int {
	return r.Image.Bounds().Dy()
}

// Bytes is the size reserved for the pixel buffer.
func (r *Raster) Bytes() int64 {
	return r.size
}

func (r *Raster) Budget() *Budget {
	return r.budget
}

// Release returns the raster's reservation to its budget. The pixels stay
// readable but must no longer be used. Calling Release twice is a no-op.
func (r *Raster) Release() {
	if r == nil || !r.released.CompareAndSwap(false, true) {
		return
	}
	r.budget.Free(r.size)
}
