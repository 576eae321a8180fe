// Package stitcher composites decoded tiles onto a single sheet following a
// layout.Plan, optionally adding the three clockwise rotations of each tile.
package stitcher

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/kiesman99/tilesheet/internal/layout"
	"github.com/kiesman99/tilesheet/pkg/tile"
)

// Options contains all sheet building parameters
type Options struct {
	BuildCardinals bool
	Background     color.Color // nil means transparent
	OutputFormat   imaging.Format
}

// Result contains the encoded sheet
type Result struct {
	ImageData []byte
	Plan      layout.Plan
	Width     int
	Height    int
}

// Stitcher builds tile sheets in memory
type Stitcher struct {
	processor *tile.Processor
}

// New creates a new stitcher instance
func New(p *tile.Processor) *Stitcher {
	if p == nil {
		p = tile.NewProcessor(false)
	}
	return &Stitcher{processor: p}
}

// Build plans and renders the sheet for tiles without encoding it.
func (s *Stitcher) Build(ctx context.Context, tiles tile.Set, opts *Options) (*image.NRGBA, layout.Plan, error) {
	imgs := tiles.Images()
	plan, err := layout.ForImages(imgs, opts.BuildCardinals)
	if err != nil {
		return nil, layout.Plan{}, err
	}

	if err := ctx.Err(); err != nil {
		return nil, layout.Plan{}, err
	}

	return Render(imgs, plan, opts.Background), plan, nil
}

// Stitch renders tiles and encodes the sheet in opts.OutputFormat.
func (s *Stitcher) Stitch(ctx context.Context, tiles tile.Set, opts *Options) (*Result, error) {
	canvas, plan, err := s.Build(ctx, tiles, opts)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var output bytes.Buffer
	if err := s.processor.EncodeImage(&output, canvas, opts.OutputFormat); err != nil {
		return nil, err
	}

	bounds := canvas.Bounds()
	return &Result{
		ImageData: output.Bytes(),
		Plan:      plan,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// Render draws every tile onto a new canvas sized by plan. Tiles are placed
// in order at increasing ordinals; with plan.BuildCardinals each tile is
// followed by copies rotated 90, 180 and 270 degrees clockwise. Cells not
// covered by a tile keep the background, which is transparent when bg is nil.
func Render(tiles []image.Image, plan layout.Plan, bg color.Color) *image.NRGBA {
	if bg == nil {
		bg = color.Transparent
	}
	bounds := plan.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), bg)

	ordinal := 0
	for _, t := range tiles {
		for _, v := range variants(t, plan.BuildCardinals) {
			drawAt(canvas, v, plan.Position(ordinal))
			ordinal++
		}
	}
	return canvas
}

// variants returns the images drawn for a single source tile. imaging rotates
// counter-clockwise, so a clockwise quarter turn is Rotate270.
func variants(img image.Image, cardinals bool) []image.Image {
	if !cardinals {
		return []image.Image{img}
	}
	return []image.Image{
		img,
		imaging.Rotate270(img),
		imaging.Rotate180(img),
		imaging.Rotate90(img),
	}
}

// drawAt composites src over dst with its top-left corner at pt.
func drawAt(dst draw.Image, src image.Image, pt image.Point) {
	b := src.Bounds()
	r := image.Rectangle{Min: pt, Max: pt.Add(b.Size())}
	draw.Draw(dst, r, src, b.Min, draw.Over)
}
