package stitch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/kiesman99/tilesheet/pkg/tile"
)

func writeTile(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode %s: %v", path, err)
	}
}

func newTestStitcher(opts *tile.SheetOptions) *Stitcher {
	return NewStitcher(opts, log.New(io.Discard))
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	return img
}

func TestStitchFilesSquare(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 4; i++ {
		writeTile(t, filepath.Join(dir, fmt.Sprintf("tile%d.png", i)), 8, 6, color.NRGBA{uint8(i * 60), 0, 0, 0xff})
	}
	output := filepath.Join(dir, "out", "sheet.png")
	if err := os.Mkdir(filepath.Dir(output), 0o755); err != nil {
		t.Fatal(err)
	}

	plan, err := newTestStitcher(nil).StitchFiles(context.Background(), []string{filepath.Join(dir, "*.png")}, output)
	if err != nil {
		t.Fatalf("StitchFiles returned error: %v", err)
	}
	if plan.TilesPerRow != 2 || plan.TilesPerColumn != 2 {
		t.Errorf("Expected 2x2 grid, got %dx%d", plan.TilesPerRow, plan.TilesPerColumn)
	}

	img := decodeFile(t, output)
	if got := img.Bounds(); got != image.Rect(0, 0, 16, 12) {
		t.Errorf("Expected 16x12 output, got %v", got)
	}

	// tile3 sorts last and lands bottom-right.
	r, _, _, _ := img.At(12, 9).RGBA()
	if r>>8 != 180 {
		t.Errorf("Expected red 180 in bottom-right cell, got %d", r>>8)
	}
}

func TestStitchFilesCardinals(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, filepath.Join(dir, "a.png"), 4, 4, color.NRGBA{0xff, 0, 0, 0xff})
	writeTile(t, filepath.Join(dir, "b.png"), 4, 4, color.NRGBA{0, 0xff, 0, 0xff})
	output := filepath.Join(dir, "sheet.gif")

	opts := &tile.SheetOptions{BuildCardinals: true}
	plan, err := newTestStitcher(opts).StitchFiles(context.Background(), []string{filepath.Join(dir, "*.png")}, output)
	if err != nil {
		t.Fatalf("StitchFiles returned error: %v", err)
	}
	if plan.TilesPerRow != 4 || plan.TilesPerColumn != 2 {
		t.Errorf("Expected 4x2 grid, got %dx%d", plan.TilesPerRow, plan.TilesPerColumn)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("Expected output file, got %v", err)
	}
}

func TestStitchFilesIdempotent(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		writeTile(t, filepath.Join(dir, fmt.Sprintf("t%d.png", i)), 5, 7, color.NRGBA{0, uint8(i * 80), 0xff, 0xff})
	}
	pattern := filepath.Join(dir, "t*.png")
	first := filepath.Join(dir, "first.png")
	second := filepath.Join(dir, "second.png")

	st := newTestStitcher(nil)
	if _, err := st.StitchFiles(context.Background(), []string{pattern}, first); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if _, err := st.StitchFiles(context.Background(), []string{pattern}, second); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Expected byte-identical output across runs")
	}
}

func TestStitchFilesNoMatches(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "sheet.png")

	_, err := newTestStitcher(nil).StitchFiles(context.Background(), []string{filepath.Join(dir, "*.png")}, output)
	if !tile.IsKind(err, tile.InvalidInput) {
		t.Fatalf("Expected invalid input error, got %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, stat returned %v", err)
	}
}

func TestStitchFilesDecodeFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 9; i++ {
		writeTile(t, filepath.Join(dir, fmt.Sprintf("ok%d.png", i)), 4, 4, color.NRGBA{0, 0, 0xff, 0xff})
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "sheet.png")

	_, err := newTestStitcher(nil).StitchFiles(context.Background(), []string{filepath.Join(dir, "*.png")}, output)
	if !tile.IsKind(err, tile.Decode) {
		t.Fatalf("Expected decode error, got %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, stat returned %v", err)
	}
}

func TestStitchFilesEncodeErrors(t *testing.T) {
	dir := t.TempDir()
	writeTile(t, filepath.Join(dir, "a.png"), 4, 4, color.NRGBA{0xff, 0xff, 0, 0xff})
	pattern := filepath.Join(dir, "*.png")

	testCases := []struct {
		name   string
		output string
	}{
		{"unsupported extension", filepath.Join(dir, "sheet.xyz")},
		{"missing directory", filepath.Join(dir, "missing", "sheet.png")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestStitcher(nil).StitchFiles(context.Background(), []string{pattern}, tc.output)
			if !tile.IsKind(err, tile.Encode) {
				t.Errorf("Expected encode error, got %v", err)
			}
			if _, err := os.Stat(tc.output); !os.IsNotExist(err) {
				t.Errorf("Expected no output file, stat returned %v", err)
			}
		})
	}
}

func TestStitchFilesNoOutput(t *testing.T) {
	_, err := newTestStitcher(nil).StitchFiles(context.Background(), []string{"*.png"}, "")
	if !tile.IsKind(err, tile.InvalidInput) {
		t.Errorf("Expected invalid input error, got %v", err)
	}
}

func TestStitchFilesMultiplePatterns(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeTile(t, a, 4, 4, color.NRGBA{0xff, 0, 0, 0xff})
	writeTile(t, b, 4, 4, color.NRGBA{0, 0xff, 0, 0xff})
	output := filepath.Join(dir, "sheet.bmp")

	// Shell-expanded file lists arrive as literal paths; duplicates count once.
	plan, err := newTestStitcher(nil).StitchFiles(context.Background(), []string{b, a, filepath.Join(dir, "*.png")}, output)
	if err != nil {
		t.Fatalf("StitchFiles returned error: %v", err)
	}
	if plan.TileCount != 2 {
		t.Errorf("Expected 2 tiles, got %d", plan.TileCount)
	}

	_, err = newTestStitcher(nil).StitchFiles(context.Background(), []string{a, filepath.Join(dir, "*.jpg")}, output)
	if !tile.IsKind(err, tile.InvalidInput) {
		t.Errorf("Expected invalid input error for unmatched pattern, got %v", err)
	}
	_, err = newTestStitcher(nil).StitchFiles(context.Background(), nil, output)
	if !tile.IsKind(err, tile.InvalidInput) {
		t.Errorf("Expected invalid input error for no patterns, got %v", err)
	}
}
