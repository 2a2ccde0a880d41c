package raster

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

var ErrBudgetExceeded = errors.New("raster memory budget exceeded")

// Budget caps the bytes held by live rasters and decoder working buffers.
// A nil Budget or a zero limit never refuses a reservation.
type Budget struct {
	limit int64
	inUse atomic.Int64
}

func NewBudget(limit int64) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}

func (b *Budget) InUse() int64 {
	if b == nil {
		return 0
	}
	return b.inUse.Load()
}

func (b *Budget) Reserve(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative reservation %d", ErrBudgetExceeded, n)
	}
	if b == nil {
		return nil
	}
	for {
		cur := b.inUse.Load()
		next := cur + n
		if b.limit > 0 && (next > b.limit || next < cur) {
			return fmt.Errorf("%w: requested=%d in_use=%d limit=%d", ErrBudgetExceeded, n, cur, b.limit)
		}
		if b.inUse.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

func (b *Budget) Free(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.inUse.Add(-n)
}

// SizeOf returns the byte size of a width x height buffer at bpp bytes per
// pixel. Dimensions whose product overflows int64 report ErrBudgetExceeded.
func SizeOf(width, height, bpp int) (int64, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}
	w, h, p := int64(width), int64(height), int64(bpp)
	if w > math.MaxInt64/h || w*h > math.MaxInt64/p {
		return 0, fmt.Errorf("%w: %dx%d overflows", ErrBudgetExceeded, width, height)
	}
	return w * h * p, nil
}
