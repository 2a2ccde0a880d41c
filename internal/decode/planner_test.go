package decode

import "testing"

func TestResizeDimension(t *testing.T) {
	tests := []struct {
		name                                string
		maxPrimary, maxSecondary, aPri, aSec int
		want                                int
	}{
		{name: "unconstrained", maxPrimary: 0, maxSecondary: 0, aPri: 400, aSec: 300, want: 400},
		{name: "primary only", maxPrimary: 100, maxSecondary: 0, aPri: 400, aSec: 300, want: 100},
		{name: "secondary only", maxPrimary: 0, maxSecondary: 150, aPri: 400, aSec: 300, want: 200},
		{name: "secondary only truncates", maxPrimary: 0, maxSecondary: 100, aPri: 401, aSec: 300, want: 133},
		{name: "both, primary wins", maxPrimary: 100, maxSecondary: 100, aPri: 400, aSec: 300, want: 100},
		{name: "both, secondary shrinks", maxPrimary: 100, maxSecondary: 100, aPri: 300, aSec: 400, want: 75},
		{name: "primary may exceed actual", maxPrimary: 800, maxSecondary: 0, aPri: 400, aSec: 300, want: 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResizeDimension(tt.maxPrimary, tt.maxSecondary, tt.aPri, tt.aSec)
			if got != tt.want {
				t.Fatalf("ResizeDimension(%d, %d, %d, %d) = %d, want %d",
					tt.maxPrimary, tt.maxSecondary, tt.aPri, tt.aSec, got, tt.want)
			}
		})
	}
}

func TestResizeDimensionUnconstrainedReturnsActual(t *testing.T) {
	for actual := 1; actual < 2048; actual += 37 {
		if got := ResizeDimension(0, 0, actual, 17); got != actual {
			t.Fatalf("expected %d unchanged, got %d", actual, got)
		}
	}
}

func TestResizeDimensionSecondaryRatio(t *testing.T) {
	for actualH := 10; actualH < 1000; actualH += 41 {
		for maxH := 1; maxH < 600; maxH += 53 {
			const actualW = 640
			got := ResizeDimension(0, maxH, actualW, actualH)
			exact := float64(actualW) * float64(maxH) / float64(actualH)
			if float64(got) > exact || exact-float64(got) >= 1 {
				t.Fatalf("actualH=%d maxH=%d: got %d, exact %.3f", actualH, maxH, got, exact)
			}
		}
	}
}

func TestResizeDimensionPairFitsBox(t *testing.T) {
	for _, size := range [][2]int{{400, 300}, {300, 400}, {1920, 1080}, {17, 2000}, {1000, 1000}} {
		for _, box := range [][2]int{{100, 100}, {64, 480}, {500, 20}, {1, 1}} {
			w := ResizeDimension(box[0], box[1], size[0], size[1])
			h := ResizeDimension(box[1], box[0], size[1], size[0])
			if w > box[0] || h > box[1] {
				t.Fatalf("size=%v box=%v: %dx%d does not fit", size, box, w, h)
			}
		}
	}
}

func TestFindBestSampleSize(t *testing.T) {
	if got := FindBestSampleSize(400, 300, 100, 75); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := FindBestSampleSize(400, 300, 400, 300); got != 1 {
		t.Fatalf("expected 1 for natural size, got %d", got)
	}
	if got := FindBestSampleSize(400, 300, 150, 112); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := FindBestSampleSize(100, 100, 400, 400); got != 1 {
		t.Fatalf("expected 1 when upscaling, got %d", got)
	}
}

func TestFindBestSampleSizeNeverUndershoots(t *testing.T) {
	for aw := 1; aw < 3000; aw += 211 {
		for ah := 1; ah < 3000; ah += 307 {
			for dw := 1; dw <= aw; dw += max(1, aw/5) {
				for dh := 1; dh <= ah; dh += max(1, ah/5) {
					n := FindBestSampleSize(aw, ah, dw, dh)
					if n < 1 || n&(n-1) != 0 {
						t.Fatalf("(%d,%d,%d,%d): %d is not a power of two", aw, ah, dw, dh, n)
					}
					if aw/n < dw || ah/n < dh {
						t.Fatalf("(%d,%d,%d,%d): factor %d undershoots", aw, ah, dw, dh, n)
					}
				}
			}
		}
	}
}

func TestPlanFor(t *testing.T) {
	tests := []struct {
		name        string
		constraints Constraints
		bounds      Bounds
		want        Plan
	}{
		{name: "unconstrained", bounds: Bounds{Width: 400, Height: 300}, want: Plan{Width: 400, Height: 300, Sample: 1}},
		{name: "width only", constraints: Constraints{MaxWidth: 100}, bounds: Bounds{Width: 400, Height: 300}, want: Plan{Width: 100, Height: 75, Sample: 4}},
		{name: "height only", constraints: Constraints{MaxHeight: 150}, bounds: Bounds{Width: 400, Height: 300}, want: Plan{Width: 200, Height: 150, Sample: 2}},
		{name: "thin strip clamps", constraints: Constraints{MaxWidth: 10}, bounds: Bounds{Width: 10000, Height: 1}, want: Plan{Width: 10, Height: 1, Sample: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.constraints.PlanFor(tt.bounds)
			if err != nil {
				t.Fatalf("PlanFor: %v", err)
			}
			if got != tt.want {
				t.Fatalf("PlanFor(%+v) = %+v, want %+v", tt.bounds, got, tt.want)
			}
		})
	}
}

func TestPlanForRejectsNegativeConstraints(t *testing.T) {
	for _, c := range []Constraints{{MaxWidth: -1}, {MaxHeight: -20}, {MaxWidth: 10, MaxHeight: -1}} {
		_, err := c.PlanFor(Bounds{Width: 400, Height: 300})
		if kind, ok := KindOf(err); !ok || kind != KindInvalidConstraints {
			t.Fatalf("%+v: expected invalid constraints, got %v", c, err)
		}
	}
}
