package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	errUploadTooLarge      = errors.New("upload exceeds size limit")
	errUnsupportedEncoding = errors.New("unsupported Content-Encoding")
	errEmptyUpload         = errors.New("request body is empty")
)

// readUploadBody reads the request body, undoing a gzip or zstd
// Content-Encoding. limit applies to both the wire and decompressed sizes.
func readUploadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()

	var reader io.Reader
	encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		reader = body
	case "gzip", "x-gzip":
		gz, gzErr := gzip.NewReader(body)
		if gzErr != nil {
			return nil, fmt.Errorf("open gzip body: %w", gzErr)
		}
		defer gz.Close()
		reader = gz
	case "zstd":
		zr, zErr := zstd.NewReader(body, zstd.WithDecoderMaxMemory(uint64(limit)+1), zstd.WithDecoderConcurrency(1))
		if zErr != nil {
			return nil, fmt.Errorf("open zstd body: %w", zErr)
		}
		defer zr.Close()
		reader = zr
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedEncoding, encoding)
	}

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w (limit %d bytes)", errUploadTooLarge, limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (limit %d bytes)", errUploadTooLarge, limit)
	}
	if len(data) == 0 {
		return nil, errEmptyUpload
	}
	return data, nil
}

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}
