package raster

import (
	"fmt"
	"strings"
)

type PixelFormat int

const (
	FormatRGBA8888 PixelFormat = iota
	FormatNRGBA8888
	FormatGray8
	FormatAlpha8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8888:
		return "rgba8888"
	case FormatNRGBA8888:
		return "nrgba8888"
	case FormatGray8:
		return "gray8"
	case FormatAlpha8:
		return "alpha8"
	default:
		return fmt.Sprintf("pixel_format(%d)", int(f))
	}
}

func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatGray8, FormatAlpha8:
		return 1
	default:
		return 4
	}
}

// ParsePixelFormat maps a request value to a PixelFormat. An empty value
// selects FormatRGBA8888.
func ParsePixelFormat(in string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "", "rgba8888", "argb8888", "rgba":
		return FormatRGBA8888, nil
	case "nrgba8888", "nrgba":
		return FormatNRGBA8888, nil
	case "gray8", "gray":
		return FormatGray8, nil
	case "alpha8", "alpha":
		return FormatAlpha8, nil
	default:
		return 0, fmt.Errorf("unsupported pixel_format: %s", in)
	}
}
