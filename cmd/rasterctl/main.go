package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dunamismax/rasterflow/internal/decode"
	"github.com/urfave/cli/v3"
)

var startDecodeRuntime = decode.Startup

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := startDecodeRuntime(); err != nil {
		_, _ = fmt.Fprintf(stderr, "start decode runtime: %v\n", err)
		return 1
	}
	defer decode.Shutdown()

	app := newApp()
	app.Writer = stdout
	app.ErrWriter = stderr
	if err := app.Run(ctx, args); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "rasterctl",
		Usage: "Bounded image decode from the command line",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			decodeCmd(),
			planCmd(),
		},
	}
}
