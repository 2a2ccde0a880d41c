package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/dunamismax/rasterflow/internal/domain"
	"github.com/dunamismax/rasterflow/internal/pipeline"
	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/urfave/cli/v3"
)

func decodeCmd() *cli.Command {
	var (
		inputPath  string
		outputPath string
		opts       domain.DecodeOptions
		maxBytes   int64
		verbose    bool
	)

	return &cli.Command{
		Name:  "decode",
		Usage: "Decode an image within size and memory bounds and write the encoded result",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "compressed image to decode", Destination: &inputPath, Required: true},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "where to write the encoded raster", Destination: &outputPath, Required: true},
			&cli.IntFlag{Name: "max-width", Usage: "bound the output width (0 = unbounded)", Destination: &opts.MaxWidth},
			&cli.IntFlag{Name: "max-height", Usage: "bound the output height (0 = unbounded)", Destination: &opts.MaxHeight},
			&cli.StringFlag{Name: "pixel-format", Usage: "rgba8888, nrgba8888, gray8 or alpha8", Destination: &opts.PixelFormat},
			&cli.BoolFlag{Name: "round-corners", Usage: "mask the raster with a rounded rectangle", Destination: &opts.RoundCorners},
			&cli.IntFlag{Name: "corner-radius", Usage: "corner radius in pixels", Value: raster.DefaultCornerRadius, Destination: &opts.CornerRadius},
			&cli.StringFlag{Name: "format", Usage: "output format: png, jpeg or webp (default: source format)", Destination: &opts.Format},
			&cli.IntFlag{Name: "quality", Usage: "jpeg/webp quality 1-100", Destination: &opts.Quality},
			&cli.Int64Flag{Name: "max-raster-bytes", Usage: "raster memory budget (0 = unlimited)", Value: 256 << 20, Destination: &maxBytes},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log decode diagnostics to stderr", Destination: &verbose},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			cfg := decode.Config{Budget: raster.NewBudget(maxBytes)}
			if verbose {
				cfg.Logger = log.New(os.Stderr, "[decode] ", log.LstdFlags|log.Lmsgprefix)
			}
			renderer := pipeline.NewRenderer(decode.NewDecoder(cfg), raster.DefaultCornerRadius)

			rendered, err := renderer.Render(ctx, source, opts)
			if err != nil {
				if kind, ok := decode.KindOf(err); ok {
					return fmt.Errorf("%s: %w", kind, err)
				}
				return err
			}

			if err := os.WriteFile(outputPath, rendered.Data, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "%s %dx%d %s %d bytes\n",
				outputPath, rendered.Width, rendered.Height, rendered.Format, len(rendered.Data))
			return nil
		},
	}
}

func planCmd() *cli.Command {
	var (
		inputPath string
		maxWidth  int
		maxHeight int
	)

	return &cli.Command{
		Name:  "plan",
		Usage: "Read image bounds and print the target size and sample factor without decoding pixels",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "compressed image to inspect", Destination: &inputPath, Required: true},
			&cli.IntFlag{Name: "max-width", Usage: "bound the output width (0 = unbounded)", Destination: &maxWidth},
			&cli.IntFlag{Name: "max-height", Usage: "bound the output height (0 = unbounded)", Destination: &maxHeight},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			source, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			bounds, err := decode.StdCodec{}.DecodeBounds(source)
			if err != nil {
				return fmt.Errorf("%s: %w", decode.KindMalformedData, err)
			}

			plan, err := decode.Constraints{MaxWidth: maxWidth, MaxHeight: maxHeight}.PlanFor(bounds)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.Root().Writer, "source=%dx%d target=%dx%d sample=%d\n",
				bounds.Width, bounds.Height, plan.Width, plan.Height, plan.Sample)
			return nil
		},
	}
}
