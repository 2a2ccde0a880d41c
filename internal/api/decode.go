package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/pipeline"
)

const (
	HeaderRasterWidth  = "X-Raster-Width"
	HeaderRasterHeight = "X-Raster-Height"
)

// handleDecode runs the bounded decoder synchronously on the request body
// and responds with the encoded raster.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptionsFromQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	body, err := readUploadBody(w, r, s.maxUploadBytes)
	if err != nil {
		writeJSON(w, uploadErrorStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rendered, err := s.renderer.Render(r.Context(), body, opts)
	if err != nil {
		status, kind := decodeErrorStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Printf("decode request failed bytes=%d kind=%s err=%v", len(body), kind, err)
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
		return
	}

	w.Header().Set("Content-Type", pipeline.ContentType(rendered.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Data)))
	w.Header().Set(HeaderRasterWidth, strconv.Itoa(rendered.Width))
	w.Header().Set(HeaderRasterHeight, strconv.Itoa(rendered.Height))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered.Data)
}

func decodeOptionsFromQuery(q url.Values) (domain.DecodeOptions, error) {
	var (
		opts domain.DecodeOptions
		err  error
	)
	if opts.MaxWidth, err = queryInt(q, "max_width"); err != nil {
		return opts, err
	}
	if opts.MaxHeight, err = queryInt(q, "max_height"); err != nil {
		return opts, err
	}
	if opts.CornerRadius, err = queryInt(q, "corner_radius"); err != nil {
		return opts, err
	}
	if opts.Quality, err = queryInt(q, "quality"); err != nil {
		return opts, err
	}
	if raw := strings.TrimSpace(q.Get("round_corners")); raw != "" {
		if opts.RoundCorners, err = strconv.ParseBool(raw); err != nil {
			return opts, fmt.Errorf("round_corners must be a boolean, got %q", raw)
		}
	}
	opts.PixelFormat = strings.TrimSpace(q.Get("pixel_format"))
	opts.Format = strings.TrimSpace(q.Get("format"))
	return opts, opts.Validate()
}

func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func decodeErrorStatus(err error) (int, string) {
	if kind, ok := decode.KindOf(err); ok {
		switch kind {
		case decode.KindMalformedData:
			return http.StatusUnprocessableEntity, kind.String()
		case decode.KindMemoryExhausted:
			return http.StatusServiceUnavailable, kind.String()
		case decode.KindInvalidConstraints:
			return http.StatusBadRequest, kind.String()
		}
	}
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "aborted"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
