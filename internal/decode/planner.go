package decode

// ResizeDimension scales one side of a rectangle so that the box fits
// maxPrimary x maxSecondary while keeping the actual aspect ratio. A zero
// maximum leaves that axis unconstrained. Call it once per axis with the
// arguments swapped to get a width/height pair.
func ResizeDimension(maxPrimary, maxSecondary, actualPrimary, actualSecondary int) int {
	if maxPrimary == 0 && maxSecondary == 0 {
		return actualPrimary
	}

	if maxPrimary == 0 {
		ratio := float64(maxSecondary) / float64(actualSecondary)
		return int(float64(actualPrimary) * ratio)
	}

	if maxSecondary == 0 {
		return maxPrimary
	}

	ratio := float64(actualSecondary) / float64(actualPrimary)
	resized := maxPrimary
	if float64(resized)*ratio > float64(maxSecondary) {
		resized = int(float64(maxSecondary) / ratio)
	}
	return resized
}

// FindBestSampleSize returns the largest power of two n such that decoding
// at 1/n scale still yields at least desiredWidth x desiredHeight pixels.
// Desired dimensions must be positive.
func FindBestSampleSize(actualWidth, actualHeight, desiredWidth, desiredHeight int) int {
	wr := float64(actualWidth) / float64(desiredWidth)
	hr := float64(actualHeight) / float64(desiredHeight)
	ratio := min(wr, hr)

	n := 1
	for float64(n*2) <= ratio {
		n *= 2
	}
	return n
}

// Plan is the decode target for one source: the box the output must fit and
// the power-of-two sample size the codec decodes at.
type Plan struct {
	Width  int
	Height int
	Sample int
}

// PlanFor validates c and computes the decode target for a source of the
// given bounds.
func (c Constraints) PlanFor(b Bounds) (Plan, error) {
	if err := c.Validate(); err != nil {
		return Plan{}, &Error{Kind: KindInvalidConstraints, Err: err}
	}
	if c.Unconstrained() {
		return Plan{Width: b.Width, Height: b.Height, Sample: 1}, nil
	}

	width := ResizeDimension(c.MaxWidth, c.MaxHeight, b.Width, b.Height)
	height := ResizeDimension(c.MaxHeight, c.MaxWidth, b.Height, b.Width)
	// Extreme aspect ratios can truncate an axis to zero.
	width = max(1, width)
	height = max(1, height)

	return Plan{
		Width:  width,
		Height: height,
		Sample: FindBestSampleSize(b.Width, b.Height, width, height),
	}, nil
}
