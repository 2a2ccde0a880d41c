package raster

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestAllocateReservesAndReleases(t *testing.T) {
	budget := NewBudget(1_000)

	r, err := Allocate(budget, 10, 10, FormatRGBA8888)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if r.Bytes() != 400 {
		t.Fatalf("expected 400 bytes, got %d", r.Bytes())
	}
	if budget.InUse() != 400 {
		t.Fatalf("expected 400 bytes in use, got %d", budget.InUse())
	}

	r.Release()
	r.Release()
	if budget.InUse() != 0 {
		t.Fatalf("expected budget to drain after release, got %d", budget.InUse())
	}
}

func TestAllocateRefusesOverBudget(t *testing.T) {
	budget := NewBudget(100)

	if _, err := Allocate(budget, 10, 10, FormatRGBA8888); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if budget.InUse() != 0 {
		t.Fatalf("refused reservation must not leak, in_use=%d", budget.InUse())
	}

	gray, err := Allocate(budget, 10, 10, FormatGray8)
	if err != nil {
		t.Fatalf("gray8 raster should fit: %v", err)
	}
	if _, ok := gray.Image.(*image.Gray); !ok {
		t.Fatalf("expected *image.Gray, got %T", gray.Image)
	}
}

func TestSizeOfOverflow(t *testing.T) {
	if _, err := SizeOf(1<<40, 1<<40, 4); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected overflow to report ErrBudgetExceeded, got %v", err)
	}
}

func TestParsePixelFormat(t *testing.T) {
	cases := map[string]PixelFormat{
		"":          FormatRGBA8888,
		"ARGB8888":  FormatRGBA8888,
		"nrgba8888": FormatNRGBA8888,
		" gray8 ":   FormatGray8,
		"alpha8":    FormatAlpha8,
	}
	for in, want := range cases {
		got, err := ParsePixelFormat(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := ParsePixelFormat("rgb565"); err == nil {
		t.Fatal("expected error for unsupported pixel format")
	}
}

func TestRoundCornersMasksCorners(t *testing.T) {
	const w, h = 64, 48
	src := opaqueRaster(t, w, h, color.RGBA{R: 200, G: 40, B: 90, A: 255})

	out, err := RoundCorners(src, 12)
	if err != nil {
		t.Fatalf("round corners: %v", err)
	}
	if out.Width() != w || out.Height() != h {
		t.Fatalf("expected %dx%d, got %dx%d", w, h, out.Width(), out.Height())
	}

	rgba, ok := out.Image.(*image.RGBA)
	if !ok {
		t.Fatalf("expected *image.RGBA, got %T", out.Image)
	}
	for _, p := range []image.Point{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}} {
		if a := rgba.RGBAAt(p.X, p.Y).A; a != 0 {
			t.Fatalf("expected transparent corner at %v, got alpha=%d", p, a)
		}
	}

	center := rgba.RGBAAt(w/2, h/2)
	if center != (color.RGBA{R: 200, G: 40, B: 90, A: 255}) {
		t.Fatalf("expected center pixel unchanged, got %+v", center)
	}

	srcCorner := src.Image.(*image.RGBA).RGBAAt(0, 0)
	if srcCorner.A != 255 {
		t.Fatal("round corners must not mutate the source raster")
	}
}

func TestRoundCornersZeroRadiusKeepsEverything(t *testing.T) {
	src := opaqueRaster(t, 16, 16, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	out, err := RoundCorners(src, 0)
	if err != nil {
		t.Fatalf("round corners: %v", err)
	}
	if a := out.Image.(*image.RGBA).RGBAAt(0, 0).A; a != 255 {
		t.Fatalf("expected opaque corner with zero radius, got alpha=%d", a)
	}
}

func TestRoundCornersRejectsNegativeRadius(t *testing.T) {
	src := opaqueRaster(t, 8, 8, color.RGBA{A: 255})
	if _, err := RoundCorners(src, -1); err == nil {
		t.Fatal("expected error for negative radius")
	}
}

func TestRoundCornersReleasesMaskReservation(t *testing.T) {
	budget := NewBudget(0)
	src, err := Allocate(budget, 20, 20, FormatRGBA8888)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	out, err := RoundCorners(src, 4)
	if err != nil {
		t.Fatalf("round corners: %v", err)
	}
	if want := src.Bytes() + out.Bytes(); budget.InUse() != want {
		t.Fatalf("expected %d bytes in use, got %d", want, budget.InUse())
	}
}

func opaqueRaster(t *testing.T, w, h int, c color.RGBA) *Raster {
	t.Helper()

	r, err := Allocate(nil, w, h, FormatRGBA8888)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	img := r.Image.(*image.RGBA)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return r
}
