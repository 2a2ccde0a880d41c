package decode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dunamismax/rasterflow/internal/raster"
)

func TestDecodeUnconstrainedKeepsNaturalSize(t *testing.T) {
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate()})

	out, err := d.Decode(context.Background(), buildTestPNG(t, 240, 120), Constraints{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Width() != 240 || out.Height() != 120 {
		t.Fatalf("expected 240x120, got %dx%d", out.Width(), out.Height())
	}
	if _, ok := out.Image.(*image.RGBA); !ok {
		t.Fatalf("expected default rgba8888 raster, got %T", out.Image)
	}
}

func TestDecodeHonorsPixelFormat(t *testing.T) {
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate()})

	out, err := d.Decode(context.Background(), buildTestPNG(t, 32, 32), Constraints{Format: raster.FormatGray8})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := out.Image.(*image.Gray); !ok {
		t.Fatalf("expected gray raster, got %T", out.Image)
	}
}

func TestDecodeConstrainedFitsBoxAndKeepsAspect(t *testing.T) {
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate()})

	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{name: "exact power of two", w: 400, h: 300, maxW: 100, maxH: 100, wantW: 100, wantH: 75},
		{name: "rescale after sampling", w: 400, h: 300, maxW: 150, maxH: 150, wantW: 150, wantH: 112},
		{name: "portrait", w: 300, h: 400, maxW: 100, maxH: 100, wantW: 75, wantH: 100},
		{name: "width only", w: 400, h: 300, maxW: 100, wantW: 100, wantH: 75},
		{name: "height only", w: 400, h: 300, maxH: 60, wantW: 80, wantH: 60},
		{name: "odd sizes", w: 401, h: 299, maxW: 100, maxH: 100, wantW: 100, wantH: 74},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := d.Decode(context.Background(), buildTestPNG(t, tt.w, tt.h), Constraints{MaxWidth: tt.maxW, MaxHeight: tt.maxH})
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Width() != tt.wantW || out.Height() != tt.wantH {
				t.Fatalf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, out.Width(), out.Height())
			}
			if tt.maxW > 0 && out.Width() > tt.maxW {
				t.Fatalf("width %d exceeds max %d", out.Width(), tt.maxW)
			}
			if tt.maxH > 0 && out.Height() > tt.maxH {
				t.Fatalf("height %d exceeds max %d", out.Height(), tt.maxH)
			}
			wantH := float64(out.Width()) * float64(tt.h) / float64(tt.w)
			if math.Abs(wantH-float64(out.Height())) > 1 {
				t.Fatalf("aspect drift: height %d, expected about %.2f", out.Height(), wantH)
			}
		})
	}
}

func TestDecodeJPEG(t *testing.T) {
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate()})

	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	for i := range img.Pix {
		img.Pix[i] = 180
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	out, err := d.Decode(context.Background(), buf.Bytes(), Constraints{MaxWidth: 80, MaxHeight: 80})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Width() != 80 || out.Height() != 50 {
		t.Fatalf("expected 80x50, got %dx%d", out.Width(), out.Height())
	}
}

func TestDecodeMalformedData(t *testing.T) {
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate()})
	valid := buildTestPNG(t, 64, 64)

	inputs := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not an image"),
		"truncated": valid[:len(valid)/2],
	}
	for name, in := range inputs {
		for _, c := range []Constraints{{}, {MaxWidth: 16, MaxHeight: 16}} {
			_, err := d.Decode(context.Background(), in, c)
			if !errors.Is(err, ErrMalformedData) {
				t.Fatalf("%s %+v: expected ErrMalformedData, got %v", name, c, err)
			}
			if kind, ok := KindOf(err); !ok || kind != KindMalformedData {
				t.Fatalf("%s: expected KindMalformedData, got %v", name, kind)
			}
		}
	}
}

func TestDecodeRejectsNegativeConstraints(t *testing.T) {
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate()})

	_, err := d.Decode(context.Background(), buildTestPNG(t, 8, 8), Constraints{MaxWidth: -1})
	if !errors.Is(err, ErrInvalidConstraints) {
		t.Fatalf("expected ErrInvalidConstraints, got %v", err)
	}
}

func TestDecodeMemoryExhaustedFromBudget(t *testing.T) {
	budget := raster.NewBudget(64 * 64)
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate(), Budget: budget})

	_, err := d.Decode(context.Background(), buildTestPNG(t, 200, 200), Constraints{})
	if !errors.Is(err, ErrMemoryExhausted) {
		t.Fatalf("expected ErrMemoryExhausted, got %v", err)
	}
	if budget.InUse() != 0 {
		t.Fatalf("failed decode leaked %d bytes of budget", budget.InUse())
	}
}

func TestDecodeReleasesSampledRaster(t *testing.T) {
	budget := raster.NewBudget(0)
	d := NewDecoder(Config{Codec: StdCodec{}, Gate: NewGate(), Budget: budget})

	out, err := d.Decode(context.Background(), buildTestPNG(t, 400, 300), Constraints{MaxWidth: 150, MaxHeight: 150})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if budget.InUse() != out.Bytes() {
		t.Fatalf("expected only the final raster to hold budget (%d), got %d", out.Bytes(), budget.InUse())
	}
	out.Release()
	if budget.InUse() != 0 {
		t.Fatalf("expected empty budget, got %d", budget.InUse())
	}
}

func TestDecodeConvertsAllocationPanic(t *testing.T) {
	gate := NewGate()
	d := NewDecoder(Config{Codec: panicCodec{msg: "image: NewRGBA Rectangle has huge or negative dimensions"}, Gate: gate})

	_, err := d.Decode(context.Background(), []byte{1}, Constraints{})
	if !errors.Is(err, ErrMemoryExhausted) {
		t.Fatalf("expected ErrMemoryExhausted, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("gate was not released after recovered panic: %v", err)
	}
	gate.Release()
}

func TestDecodeRepanicsOnOtherPanics(t *testing.T) {
	gate := NewGate()
	d := NewDecoder(Config{Codec: panicCodec{msg: "boom"}, Gate: gate})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_, _ = d.Decode(context.Background(), []byte{1}, Constraints{})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("gate leaked after panic: %v", err)
	}
	gate.Release()
}

func TestDecodeNilRasterIsMalformed(t *testing.T) {
	d := NewDecoder(Config{Codec: nilCodec{}, Gate: NewGate()})

	_, err := d.Decode(context.Background(), []byte{1, 2, 3}, Constraints{})
	if !errors.Is(err, ErrMalformedData) {
		t.Fatalf("expected ErrMalformedData, got %v", err)
	}
}

func TestDecodeSerializesOnSharedGate(t *testing.T) {
	gate := &countingGate{inner: NewGate()}
	codec := &slowCodec{}
	obs := &recordingObserver{}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := NewDecoder(Config{Codec: codec, Gate: gate, Observer: obs})
			if _, err := d.Decode(context.Background(), []byte{1}, Constraints{MaxWidth: 4, MaxHeight: 4}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("decode: %v", err)
	}
	if got := gate.peak.Load(); got != 1 {
		t.Fatalf("expected at most one holder inside the gate, peak=%d", got)
	}
	if got := codec.peak.Load(); got != 1 {
		t.Fatalf("expected at most one decode body at a time, peak=%d", got)
	}
	if got := obs.finished.Load(); got != 16 {
		t.Fatalf("expected 16 finished observations, got %d", got)
	}
}

func TestDecodeGateWaitHonorsContext(t *testing.T) {
	gate := NewGate()
	if err := gate.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer gate.Release()

	d := NewDecoder(Config{Codec: StdCodec{}, Gate: gate})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Decode(ctx, buildTestPNG(t, 8, 8), Constraints{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while waiting for gate, got %v", err)
	}
	if _, ok := KindOf(err); ok {
		t.Fatal("gate wait abort must not be reported as a decode failure kind")
	}
}

func TestDefaultGateIsShared(t *testing.T) {
	if DefaultGate() != DefaultGate() {
		t.Fatal("expected a single process-wide gate")
	}
	if NewDecoder(Config{}).gate != DefaultGate() {
		t.Fatal("expected decoders to fall back to the process-wide gate")
	}
}

type panicCodec struct {
	msg string
}

func (c panicCodec) DecodeBounds([]byte) (Bounds, error) {
	return Bounds{Width: 1, Height: 1}, nil
}

func (c panicCodec) Decode([]byte, int, raster.PixelFormat, *raster.Budget) (*raster.Raster, error) {
	panic(c.msg)
}

type nilCodec struct{}

func (nilCodec) DecodeBounds([]byte) (Bounds, error) {
	return Bounds{Width: 1, Height: 1}, nil
}

func (nilCodec) Decode([]byte, int, raster.PixelFormat, *raster.Budget) (*raster.Raster, error) {
	return nil, nil
}

type slowCodec struct {
	inside atomic.Int32
	peak   atomic.Int32
}

func (c *slowCodec) DecodeBounds([]byte) (Bounds, error) {
	c.enter()
	defer c.inside.Add(-1)
	return Bounds{Width: 16, Height: 16}, nil
}

func (c *slowCodec) Decode(_ []byte, sample int, format raster.PixelFormat, budget *raster.Budget) (*raster.Raster, error) {
	c.enter()
	defer c.inside.Add(-1)
	time.Sleep(2 * time.Millisecond)
	return raster.Allocate(budget, 16/sample, 16/sample, format)
}

func (c *slowCodec) enter() {
	n := c.inside.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

type countingGate struct {
	inner  Gate
	inside atomic.Int32
	peak   atomic.Int32
}

func (g *countingGate) Acquire(ctx context.Context) error {
	if err := g.inner.Acquire(ctx); err != nil {
		return err
	}
	n := g.inside.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return nil
		}
	}
}

func (g *countingGate) Release() {
	g.inside.Add(-1)
	g.inner.Release()
}

type recordingObserver struct {
	finished atomic.Int32
}

func (o *recordingObserver) GateWait(time.Duration) {}

func (o *recordingObserver) DecodeFinished(string, time.Duration) {
	o.finished.Add(1)
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
