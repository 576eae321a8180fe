// Package layout computes the grid geometry of a tile sheet.
package layout

import (
	"fmt"
	"image"

	"github.com/kiesman99/tilesheet/pkg/tile"
)

// Cardinals is the number of variants drawn per source tile when cardinal
// rotations are enabled: 0, 90, 180 and 270 degrees.
const Cardinals = 4

// Plan describes the cell size and grid of a tile sheet.
type Plan struct {
	TileCount      int
	TileWidth      int
	TileHeight     int
	TilesPerRow    int
	TilesPerColumn int
	BuildCardinals bool
}

// Compute plans a sheet for tileCount sources whose largest dimensions are
// maxW by maxH. With buildCardinals each source gets its own row of four
// rotations; otherwise the tiles are packed into the smallest square grid.
func Compute(tileCount, maxW, maxH int, buildCardinals bool) (Plan, error) {
	if tileCount < 1 {
		return Plan{}, tile.Errorf(tile.InvalidInput, "no tiles to combine")
	}
	if maxW < 1 || maxH < 1 {
		return Plan{}, tile.Errorf(tile.InvalidInput, "tile size %dx%d is empty", maxW, maxH)
	}

	p := Plan{
		TileCount:      tileCount,
		TileWidth:      maxW,
		TileHeight:     maxH,
		BuildCardinals: buildCardinals,
	}
	if buildCardinals {
		p.TilesPerRow = Cardinals
		p.TilesPerColumn = tileCount
	} else {
		side := ceilSqrt(tileCount)
		p.TilesPerRow = side
		p.TilesPerColumn = side
	}
	return p, nil
}

// ForImages plans a sheet for imgs, using their largest width and height as
// the cell size.
func ForImages(imgs []image.Image, buildCardinals bool) (Plan, error) {
	var maxW, maxH int
	for _, img := range imgs {
		size := img.Bounds().Size()
		if size.X > maxW {
			maxW = size.X
		}
		if size.Y > maxH {
			maxH = size.Y
		}
	}
	return Compute(len(imgs), maxW, maxH, buildCardinals)
}

// Position returns the top-left pixel of the cell at ordinal.
func (p Plan) Position(ordinal int) image.Point {
	return image.Pt(
		(ordinal%p.TilesPerRow)*p.TileWidth,
		(ordinal/p.TilesPerRow)*p.TileHeight,
	)
}

// Rendered is the number of tiles drawn onto the sheet.
func (p Plan) Rendered() int {
	if p.BuildCardinals {
		return p.TileCount * Cardinals
	}
	return p.TileCount
}

// Cells is the number of grid cells; at least Rendered.
func (p Plan) Cells() int {
	return p.TilesPerRow * p.TilesPerColumn
}

// Bounds is the canvas rectangle, anchored at the origin.
func (p Plan) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.TileWidth*p.TilesPerRow, p.TileHeight*p.TilesPerColumn)
}

func (p Plan) String() string {
	return fmt.Sprintf("%dx%d cells of %dx%d px", p.TilesPerRow, p.TilesPerColumn, p.TileWidth, p.TileHeight)
}

// ceilSqrt returns the smallest s with s*s >= n, for n >= 1.
func ceilSqrt(n int) int {
	s := 1
	for s*s < n {
		s++
	}
	return s
}
