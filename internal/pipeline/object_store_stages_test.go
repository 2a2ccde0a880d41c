package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/rasterflow/internal/domain"
)

type memoryObjects map[string][]byte

func (m memoryObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	return m[key], nil
}

func (m memoryObjects) WriteObject(_ context.Context, key string, data []byte, _ string) error {
	m[key] = data
	return nil
}

func TestObjectStoreProcessorRoundTrip(t *testing.T) {
	objects := memoryObjects{"uploads/job-9/source": buildTestPNG(t, 200, 100)}

	processor, err := NewProcessor(
		ObjectStoreFetcher{Storage: objects},
		ObjectStoreEmitter{Storage: objects},
		NewRenderer(testDecoder(), 0),
	)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		JobID:      "job-9",
		SourceType: "s3_presigned",
		ObjectKey:  "uploads/job-9/source",
		Decode:     domain.DecodeOptions{MaxWidth: 50, MaxHeight: 50},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.Output.Path != "outputs/job-9/decoded.png" {
		t.Fatalf("unexpected output key %s", result.Output.Path)
	}
	if _, ok := objects[result.Output.Path]; !ok {
		t.Fatal("expected output object to be written")
	}
	if result.Output.Width != 50 || result.Output.Height != 25 {
		t.Fatalf("expected 50x25, got %dx%d", result.Output.Width, result.Output.Height)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{"jpg": "image/jpeg", "JPEG": "image/jpeg", "webp": "image/webp", "png": "image/png", "": "image/png"}
	for in, want := range cases {
		if got := ContentType(in); got != want {
			t.Fatalf("ContentType(%q)=%s, want %s", in, got, want)
		}
	}
}
