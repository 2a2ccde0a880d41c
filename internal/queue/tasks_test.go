package queue

import (
	"testing"
	"time"

	"github.com/dunamismax/rasterflow/internal/domain"
)

func TestDecodeImageTaskCarriesOptions(t *testing.T) {
	job := domain.Job{
		ID:         "job-123",
		UserID:     "user-7",
		SourceType: domain.SourceTypeHTTPURL,
		SourceURL:  "https://images.example.com/a.jpg",
		Decode: domain.DecodeOptions{
			MaxWidth:     320,
			PixelFormat:  "gray8",
			RoundCorners: true,
		},
	}

	task, err := NewDecodeImageTask(PayloadForJob(job, time.Now().UTC()))
	if err != nil {
		t.Fatalf("NewDecodeImageTask returned error: %v", err)
	}
	if task.Type() != TypeDecodeImage {
		t.Fatalf("expected task type %q, got %q", TypeDecodeImage, task.Type())
	}

	parsed, err := ParseDecodeImagePayload(task)
	if err != nil {
		t.Fatalf("ParseDecodeImagePayload returned error: %v", err)
	}

	if parsed.JobID != job.ID || parsed.UserID != job.UserID {
		t.Fatalf("unexpected ids: %+v", parsed)
	}
	if parsed.SourceURL != job.SourceURL {
		t.Fatalf("expected source_url %q, got %q", job.SourceURL, parsed.SourceURL)
	}
	if parsed.Decode != job.Decode {
		t.Fatalf("expected decode options %+v, got %+v", job.Decode, parsed.Decode)
	}
}
