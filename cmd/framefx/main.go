// Command framefx applies a framefx filter to still images or a directory
// of frames and writes the results as PNG files.
//
// Usage:
//
//	framefx -filter comic -in frames/ -out filtered/
//	framefx -filter cartoon -in photo.jpg -out out/ -width 640 -height 480
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/gogpu/framefx"
	"github.com/gogpu/framefx/compute"

	// Enable the wgpu compute backend when a GPU is available.
	_ "github.com/gogpu/framefx/gpu"
)

func main() {
	defaults := framefx.DefaultParams()
	var (
		filter   = flag.String("filter", "none", "filter: "+strings.Join(framefx.FilterNames, ", "))
		in       = flag.String("in", "", "input image or directory of frames (PNG/JPEG)")
		out      = flag.String("out", "out", "output directory")
		width    = flag.Int("width", 0, "frame width (0 = width of the first frame)")
		height   = flag.Int("height", 0, "frame height (0 = height of the first frame)")
		fps      = flag.Float64("fps", 0, "frame rate (0 = as fast as possible)")
		backend  = flag.String("backend", "", "compute backend: wgpu or software (default: best available)")
		levels   = flag.Int("levels", defaults.Levels, "posterize levels")
		cell     = flag.Int("cell", defaults.CellSize, "halftone cell size")
		cutoff   = flag.Int("cutoff", defaults.Cutoff, "comic edge cutoff (0-255)")
		maxAlpha = flag.Float64("alpha", defaults.MaxAlpha, "halftone dot opacity (0-1)")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	framefx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	f, err := framefx.ParseFilter(*filter, framefx.Params{
		CellSize: *cell,
		Levels:   *levels,
		Cutoff:   *cutoff,
		MaxAlpha: *maxAlpha,
	})
	if err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}

	src, err := newImageSource(*in)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	w, h, err := src.size(*width, *height)
	if err != nil {
		log.Fatalf("Failed to read first frame: %v", err)
	}
	sink, err := newPNGSink(*out)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}

	var opts []compute.Option
	if *backend != "" {
		opts = append(opts, compute.WithBackend(*backend))
	}
	cc := compute.New(opts...)
	defer cc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := framefx.NewDispatcher(cc)
	loop := framefx.NewLoop(d, src, sink, func() framefx.Filter { return f }, w, h, framefx.WithFPS(*fps))
	if err := loop.Run(ctx); err != nil {
		log.Fatalf("Processing stopped: %v", err)
	}

	fmt.Printf("%d frames (%dx%d, %s, %s backend, %d failed) written to %s\n",
		loop.Frames(), w, h, f.Name(), cc.Backend(), loop.Failures(), *out)
}
