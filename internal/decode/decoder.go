package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dunamismax/rasterflow/internal/raster"
)

// CompressedImage is an encoded image buffer. Decoders never modify it.
type CompressedImage []byte

func (c CompressedImage) Len() int {
	return len(c)
}

// Constraints bound the decoded size. A zero maximum leaves that axis free.
type Constraints struct {
	MaxWidth  int
	MaxHeight int
	Format    raster.PixelFormat
}

func (c Constraints) Validate() error {
	if c.MaxWidth < 0 {
		return fmt.Errorf("max_width must be >= 0, got %d", c.MaxWidth)
	}
	if c.MaxHeight < 0 {
		return fmt.Errorf("max_height must be >= 0, got %d", c.MaxHeight)
	}
	return nil
}

func (c Constraints) Unconstrained() bool {
	return c.MaxWidth == 0 && c.MaxHeight == 0
}

// Observer receives decode instrumentation. Calls happen on the decoding
// goroutine.
type Observer interface {
	GateWait(d time.Duration)
	DecodeFinished(outcome string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) GateWait(time.Duration)               {}
func (nopObserver) DecodeFinished(string, time.Duration) {}

type Config struct {
	Codec    Codec
	Gate     Gate
	Budget   *raster.Budget
	Logger   *log.Logger
	Observer Observer
}

type Decoder struct {
	codec    Codec
	gate     Gate
	budget   *raster.Budget
	logger   *log.Logger
	observer Observer
}

func NewDecoder(cfg Config) *Decoder {
	d := &Decoder{
		codec:    cfg.Codec,
		gate:     cfg.Gate,
		budget:   cfg.Budget,
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
	if d.codec == nil {
		d.codec = DefaultCodec()
	}
	if d.gate == nil {
		d.gate = DefaultGate()
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard, "", 0)
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}
	return d
}

func (d *Decoder) Budget() *raster.Budget {
	return d.budget
}

// Decode turns img into a raster that fits constraints. Failures are
// returned as *Error. ctx only bounds the wait for the decode gate: once the
// gate is held the decode runs to completion.
func (d *Decoder) Decode(ctx context.Context, img CompressedImage, constraints Constraints) (*raster.Raster, error) {
	if err := constraints.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidConstraints, Err: err}
	}
	if img.Len() == 0 {
		return nil, &Error{Kind: KindMalformedData, Err: errors.New("empty image buffer")}
	}

	waitStart := time.Now()
	if err := d.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire decode gate: %w", err)
	}
	defer d.gate.Release()
	d.observer.GateWait(time.Since(waitStart))

	startedAt := time.Now()
	out, err := d.decodeGated(img, constraints)
	d.observer.DecodeFinished(outcomeLabel(err), time.Since(startedAt))
	return out, err
}

func (d *Decoder) decodeGated(img CompressedImage, constraints Constraints) (out *raster.Raster, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if !isAllocationPanic(rec) {
			panic(rec)
		}
		d.logger.Printf("caught OOM for %d byte image: %v", img.Len(), rec)
		out, err = nil, &Error{Kind: KindMemoryExhausted, Err: fmt.Errorf("%v", rec)}
	}()

	out, err = d.decodeToRaster(img, constraints)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, raster.ErrBudgetExceeded) {
		d.logger.Printf("caught OOM for %d byte image: %v", img.Len(), err)
		return nil, &Error{Kind: KindMemoryExhausted, Err: err}
	}
	var de *Error
	if errors.As(err, &de) {
		return nil, err
	}
	return nil, &Error{Kind: KindMalformedData, Err: err}
}

func (d *Decoder) decodeToRaster(img CompressedImage, constraints Constraints) (*raster.Raster, error) {
	if constraints.Unconstrained() {
		return d.codecDecode(img, 1, constraints.Format)
	}

	bounds, err := d.codec.DecodeBounds(img)
	if err != nil {
		return nil, err
	}

	plan, err := constraints.PlanFor(bounds)
	if err != nil {
		return nil, err
	}

	sampled, err := d.codecDecode(img, plan.Sample, constraints.Format)
	if err != nil {
		return nil, err
	}

	if sampled.Width() <= plan.Width && sampled.Height() <= plan.Height {
		return sampled, nil
	}

	scaled, err := rescale(d.budget, sampled, plan.Width, plan.Height)
	sampled.Release()
	if err != nil {
		return nil, err
	}
	return scaled, nil
}

func (d *Decoder) codecDecode(img CompressedImage, sample int, format raster.PixelFormat) (*raster.Raster, error) {
	r, err := d.codec.Decode(img, sample, format, d.budget)
	if err != nil {
		return nil, err
	}
	if r == nil || r.Image == nil {
		return nil, errors.New("decoder produced no raster")
	}
	return r, nil
}

func isAllocationPanic(rec any) bool {
	var msg string
	switch v := rec.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		return false
	}
	return strings.Contains(msg, "huge or negative dimensions") ||
		strings.Contains(msg, "makeslice: len out of range") ||
		strings.Contains(msg, "makeslice: cap out of range")
}
