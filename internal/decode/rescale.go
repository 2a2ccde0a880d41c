package decode

import (
	"image"

	"github.com/dunamismax/rasterflow/internal/raster"
	xdraw "golang.org/x/image/draw"
)

// boxKernel weights every source pixel under the scaled support equally, so
// an integer downscale averages each sample x sample block.
var boxKernel = &xdraw.Kernel{Support: 0.5, At: func(float64) float64 { return 1 }}

// sampleDown reduces src by an integer factor to floor(natural/sample) on
// each axis, never below one pixel.
func sampleDown(budget *raster.Budget, src image.Image, sample int, format raster.PixelFormat) (*raster.Raster, error) {
	sb := src.Bounds()
	dst, err := raster.Allocate(budget, max(1, sb.Dx()/sample), max(1, sb.Dy()/sample), format)
	if err != nil {
		return nil, err
	}
	boxKernel.Scale(dst.Image, dst.Image.Bounds(), src, sb, xdraw.Src, nil)
	return dst, nil
}

// rescale resamples src to exactly width x height with bilinear filtering.
func rescale(budget *raster.Budget, src *raster.Raster, width, height int) (*raster.Raster, error) {
	dst, err := raster.Allocate(budget, width, height, src.Format)
	if err != nil {
		return nil, err
	}
	xdraw.BiLinear.Scale(dst.Image, dst.Image.Bounds(), src.Image, src.Image.Bounds(), xdraw.Src, nil)
	return dst, nil
}
