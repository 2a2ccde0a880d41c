package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dunamismax/rasterflow/internal/raster"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
	SourceTypeHTTPURL     = "http_url"
)

type CreateJobRequest struct {
	SourceType string        `json:"source_type"`
	WebhookURL string        `json:"webhook_url,omitempty"`
	ObjectKey  string        `json:"object_key,omitempty"`
	SourceURL  string        `json:"source_url,omitempty"`
	Decode     DecodeOptions `json:"decode"`
}

// DecodeOptions describe how a job's compressed image becomes its output.
// Zero MaxWidth/MaxHeight leave that axis unconstrained.
type DecodeOptions struct {
	MaxWidth     int    `json:"max_width,omitempty"`
	MaxHeight    int    `json:"max_height,omitempty"`
	PixelFormat  string `json:"pixel_format,omitempty"`
	RoundCorners bool   `json:"round_corners,omitempty"`
	CornerRadius int    `json:"corner_radius,omitempty"`
	Format       string `json:"format,omitempty"`
	Quality      int    `json:"quality,omitempty"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	ObjectKey  string
	SourceURL  string
	Decode     DecodeOptions
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	switch sourceType {
	case SourceTypeLocalFile:
		if strings.TrimSpace(r.ObjectKey) == "" {
			return errors.New("object_key is required for source_type=local_file")
		}
	case SourceTypeS3Presigned:
	case SourceTypeHTTPURL:
		if err := validateSourceURL(r.SourceURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	return r.Decode.Validate()
}

func (o DecodeOptions) Validate() error {
	if o.MaxWidth < 0 {
		return fmt.Errorf("decode.max_width must be >= 0, got %d", o.MaxWidth)
	}
	if o.MaxHeight < 0 {
		return fmt.Errorf("decode.max_height must be >= 0, got %d", o.MaxHeight)
	}
	if o.CornerRadius < 0 {
		return fmt.Errorf("decode.corner_radius must be >= 0, got %d", o.CornerRadius)
	}
	if o.Quality < 0 || o.Quality > 100 {
		return fmt.Errorf("decode.quality must be within 0..100, got %d", o.Quality)
	}
	if _, err := raster.ParsePixelFormat(o.PixelFormat); err != nil {
		return fmt.Errorf("decode.%w", err)
	}
	switch strings.ToLower(strings.TrimSpace(o.Format)) {
	case "", "png", "jpeg", "jpg", "webp":
	default:
		return fmt.Errorf("unsupported decode.format: %s", o.Format)
	}
	return nil
}

func validateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("source_url is required for source_type=http_url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid source_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source_url must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("source_url host is required")
	}
	return nil
}
