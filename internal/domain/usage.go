package domain

import "time"

// UsageLog is the billable record of one successful decode. PixelsProcessed
// counts output pixels, after sampling and rescale.
type UsageLog struct {
	UserID          string
	JobID           string
	PixelsProcessed int64
	BytesSaved      int64
	ComputeTimeMS   int64
	OutputFormat    string
	PixelFormat     string
	RoundedCorners  bool
	CreatedAt       time.Time
}
