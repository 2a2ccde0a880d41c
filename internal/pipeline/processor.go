package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/dunamismax/rasterflow/internal/domain"
)

const SourceTypeLocalFile = domain.SourceTypeLocalFile

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	SourceURL  string
	Decode     domain.DecodeOptions
}

type Output struct {
	Format         string `json:"format"`
	Path           string `json:"path"`
	Bytes          int    `json:"bytes"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	RoundedCorners bool   `json:"rounded_corners"`
	Success        bool   `json:"success"`
}

type Result struct {
	SourceBytes int
	Output      Output
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, rendered Rendered) (Output, error)
}

type Processor struct {
	fetcher  Fetcher
	renderer *Renderer
	emitter  Emitter
}

func NewProcessor(fetcher Fetcher, emitter Emitter, renderer *Renderer) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if emitter == nil {
		return nil, errors.New("emitter is required")
	}
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	return &Processor{
		fetcher:  fetcher,
		renderer: renderer,
		emitter:  emitter,
	}, nil
}

func NewLocalProcessor(outputDir string, decoder *decode.Decoder) (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: outputDir}, NewRenderer(decoder, 0))
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return Result{}, fmt.Errorf("%w: job_id is required", ErrInvalidRequest)
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	rendered, err := p.renderer.Render(ctx, sourceBytes, req.Decode)
	if err != nil {
		return Result{}, err
	}

	written, err := p.emitter.Emit(ctx, req, rendered)
	if err != nil {
		return Result{}, fmt.Errorf("emit stage: %w", err)
	}

	return Result{SourceBytes: len(sourceBytes), Output: written}, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

// SourceRouter dispatches to a Fetcher by source type.
type SourceRouter map[string]Fetcher

func (r SourceRouter) Fetch(ctx context.Context, req Request) ([]byte, error) {
	fetcher, ok := r[strings.ToLower(strings.TrimSpace(req.SourceType))]
	if !ok || fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	return fetcher.Fetch(ctx, req)
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, rendered Rendered) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(jobDir, outputFilename(rendered.Format))
	if err := os.WriteFile(fullPath, rendered.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return outputFor(rendered, fullPath), nil
}

func outputFilename(format string) string {
	return fmt.Sprintf("decoded.%s", normalizeOutputFormat(format))
}

func outputFor(rendered Rendered, path string) Output {
	return Output{
		Format:         normalizeOutputFormat(rendered.Format),
		Path:           path,
		Bytes:          len(rendered.Data),
		Width:          rendered.Width,
		Height:         rendered.Height,
		RoundedCorners: rendered.RoundedCorners,
		Success:        true,
	}
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
