package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/raster"
)

var ErrInvalidRequest = errors.New("invalid request")

type Rendered struct {
	Data           []byte
	Format         string
	Width          int
	Height         int
	RoundedCorners bool
}

// Renderer turns one compressed payload into an encoded output: decode,
// optionally round the corners, encode.
type Renderer struct {
	decoder      *decode.Decoder
	encoder      Encoder
	cornerRadius int
}

func NewRenderer(decoder *decode.Decoder, defaultCornerRadius int) *Renderer {
	if decoder == nil {
		decoder = decode.NewDecoder(decode.Config{})
	}
	if defaultCornerRadius <= 0 {
		defaultCornerRadius = raster.DefaultCornerRadius
	}
	return &Renderer{
		decoder:      decoder,
		encoder:      newEncoder(),
		cornerRadius: defaultCornerRadius,
	}
}

func (r *Renderer) Render(ctx context.Context, source []byte, opts domain.DecodeOptions) (Rendered, error) {
	if err := opts.Validate(); err != nil {
		return Rendered{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	pixelFormat, err := raster.ParsePixelFormat(opts.PixelFormat)
	if err != nil {
		return Rendered{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	format, err := outputFormat(r.encoder, opts.Format, source, opts.RoundCorners)
	if err != nil {
		return Rendered{}, err
	}

	decoded, err := r.decoder.Decode(ctx, source, decode.Constraints{
		MaxWidth:  opts.MaxWidth,
		MaxHeight: opts.MaxHeight,
		Format:    pixelFormat,
	})
	if err != nil {
		return Rendered{}, fmt.Errorf("decode stage: %w", err)
	}

	final := decoded
	if opts.RoundCorners {
		radius := opts.CornerRadius
		if radius == 0 {
			radius = r.cornerRadius
		}
		rounded, err := raster.RoundCorners(decoded, radius)
		decoded.Release()
		if err != nil {
			if errors.Is(err, raster.ErrBudgetExceeded) {
				err = &decode.Error{Kind: decode.KindMemoryExhausted, Err: err}
			}
			return Rendered{}, fmt.Errorf("round corners stage: %w", err)
		}
		final = rounded
	}
	defer final.Release()

	data, err := r.encoder.Encode(final, format, opts.Quality)
	if err != nil {
		return Rendered{}, fmt.Errorf("encode stage: %w", err)
	}

	return Rendered{
		Data:           data,
		Format:         format,
		Width:          final.Width(),
		Height:         final.Height(),
		RoundedCorners: opts.RoundCorners,
	}, nil
}

// IsPermanent reports whether retrying err with the same input cannot
// succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, decode.ErrMalformedData) ||
		errors.Is(err, decode.ErrInvalidConstraints) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnsupportedSourceType)
}
