package domain

import "testing"

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Decode: DecodeOptions{
			MaxWidth:     320,
			MaxHeight:    240,
			RoundCorners: true,
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateJobRequest{SourceType: SourceTypeLocalFile}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for local_file object_key")
	}

	unsupportedSourceType := CreateJobRequest{SourceType: "ftp"}
	if err := unsupportedSourceType.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}

	httpSource := CreateJobRequest{SourceType: SourceTypeHTTPURL, SourceURL: "https://cdn.example.com/a.jpg"}
	if err := httpSource.Validate(); err != nil {
		t.Fatalf("expected valid http_url request, got error: %v", err)
	}

	badURL := CreateJobRequest{SourceType: SourceTypeHTTPURL, SourceURL: "file:///etc/passwd"}
	if err := badURL.Validate(); err == nil {
		t.Fatal("expected validation error for non-http source_url")
	}
}

func TestDecodeOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    DecodeOptions
		wantErr bool
	}{
		{name: "zero value", opts: DecodeOptions{}},
		{name: "negative width", opts: DecodeOptions{MaxWidth: -1}, wantErr: true},
		{name: "negative height", opts: DecodeOptions{MaxHeight: -5}, wantErr: true},
		{name: "negative radius", opts: DecodeOptions{RoundCorners: true, CornerRadius: -2}, wantErr: true},
		{name: "quality out of range", opts: DecodeOptions{Quality: 101}, wantErr: true},
		{name: "unknown pixel format", opts: DecodeOptions{PixelFormat: "rgb565"}, wantErr: true},
		{name: "unknown output format", opts: DecodeOptions{Format: "avif"}, wantErr: true},
		{name: "gray jpeg", opts: DecodeOptions{PixelFormat: "gray8", Format: "jpg", Quality: 70}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
