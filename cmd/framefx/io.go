package main

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gogpu/framefx"
)

// imageSource reads frames from image files in name order and scales
// each one to the session size.
type imageSource struct {
	paths []string
	next  int
}

func newImageSource(path string) (*imageSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return &imageSource{paths: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			if !e.IsDir() {
				paths = append(paths, filepath.Join(path, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no PNG or JPEG frames in %s", path)
	}
	slices.Sort(paths)
	return &imageSource{paths: paths}, nil
}

// size resolves the session size; zero values come from the first frame.
func (s *imageSource) size(w, h int) (int, int, error) {
	if w > 0 && h > 0 {
		return w, h, nil
	}
	img, err := decode(s.paths[0])
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	if w <= 0 {
		w = b.Dx()
	}
	if h <= 0 {
		h = b.Dy()
	}
	return w, h, nil
}

// ReadFrame implements framefx.Source.
func (s *imageSource) ReadFrame(_ context.Context, dst *framefx.Raster) error {
	if s.next >= len(s.paths) {
		return io.EOF
	}
	img, err := decode(s.paths[s.next])
	if err != nil {
		return err
	}
	s.next++

	view := &image.NRGBA{
		Pix:    dst.Data(),
		Stride: dst.Width() * 4,
		Rect:   image.Rect(0, 0, dst.Width(), dst.Height()),
	}
	if img.Bounds().Size() == view.Rect.Size() {
		draw.Draw(view, view.Rect, img, img.Bounds().Min, draw.Src)
		return nil
	}
	draw.CatmullRom.Scale(view, view.Rect, img, img.Bounds(), draw.Src, nil)
	return nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// pngSink writes each frame to dir/frame_NNNNN.png.
type pngSink struct {
	dir string
	n   int
}

func newPNGSink(dir string) (*pngSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &pngSink{dir: dir}, nil
}

// WriteFrame implements framefx.Sink.
func (s *pngSink) WriteFrame(_ context.Context, r *framefx.Raster) error {
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%05d.png", s.n))
	if err := r.SavePNG(path); err != nil {
		return err
	}
	s.n++
	return nil
}
