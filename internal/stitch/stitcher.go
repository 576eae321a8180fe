package stitch

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/kiesman99/tilesheet/internal/layout"
	"github.com/kiesman99/tilesheet/internal/stitcher"
	"github.com/kiesman99/tilesheet/pkg/tile"
)

// Stitcher handles the file based sheet pipeline used by the CLI
type Stitcher struct {
	processor *tile.Processor
	options   *tile.SheetOptions
	logger    *log.Logger
}

// NewStitcher creates a new stitcher instance
func NewStitcher(opts *tile.SheetOptions, logger *log.Logger) *Stitcher {
	if opts == nil {
		opts = &tile.SheetOptions{}
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Stitcher{
		processor: tile.NewProcessor(false),
		options:   opts,
		logger:    logger,
	}
}

// StitchFiles combines every file matching patterns into a single sheet
// written to output. Each pattern must match at least one file; matches keep
// pattern order and are sorted by name within a pattern. Nothing is written
// unless every file decodes.
func (s *Stitcher) StitchFiles(ctx context.Context, patterns []string, output string) (layout.Plan, error) {
	if output == "" {
		return layout.Plan{}, tile.Errorf(tile.InvalidInput, "no output file given")
	}
	// Fail on an unknown extension before decoding anything.
	if _, err := imaging.FormatFromFilename(output); err != nil {
		return layout.Plan{}, &tile.Error{Kind: tile.Encode, Path: output, Err: err}
	}

	files, err := s.match(patterns)
	if err != nil {
		return layout.Plan{}, err
	}

	tiles, err := s.processor.LoadFiles(files)
	if err != nil {
		return layout.Plan{}, err
	}
	for _, t := range tiles {
		size := t.Image.Bounds().Size()
		s.logger.Debug("loaded tile", "file", t.Name, "width", size.X, "height", size.Y)
	}

	canvas, plan, err := stitcher.New(s.processor).Build(ctx, tiles, &stitcher.Options{
		BuildCardinals: s.options.BuildCardinals,
		Background:     s.options.Background,
	})
	if err != nil {
		return layout.Plan{}, err
	}
	s.logger.Info("rendered sheet",
		"tiles", plan.TileCount,
		"rendered", plan.Rendered(),
		"grid", fmt.Sprintf("%dx%d", plan.TilesPerRow, plan.TilesPerColumn),
		"cell", fmt.Sprintf("%dx%d", plan.TileWidth, plan.TileHeight),
	)

	if err := s.processor.WriteImage(output, canvas); err != nil {
		return layout.Plan{}, err
	}
	s.logger.Info("wrote sheet", "output", output)

	return plan, nil
}

func (s *Stitcher) match(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, tile.Errorf(tile.InvalidInput, "no file pattern given")
	}

	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := s.processor.Match(pattern)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("matched tiles", "pattern", pattern, "count", len(matches))

		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
