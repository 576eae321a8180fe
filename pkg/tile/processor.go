package tile

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	// Sources may also be WebP; imaging registers the other formats itself.
	_ "golang.org/x/image/webp"
)

// Processor handles tile file discovery, decoding and encoding
type Processor struct {
	opts []imaging.DecodeOption
}

// NewProcessor creates a new tile processor. With autoOrient set, JPEG
// sources are rotated according to their EXIF orientation tag on decode.
func NewProcessor(autoOrient bool) *Processor {
	return &Processor{
		opts: []imaging.DecodeOption{imaging.AutoOrientation(autoOrient)},
	}
}

// Match resolves a directory plus filename wildcard into the sorted list of
// regular files it names. No match is an InvalidInput error.
func (p *Processor) Match(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, Errorf(InvalidInput, "empty file pattern")
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, &Error{Kind: InvalidInput, Path: pattern, Err: err}
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, &Error{Kind: InvalidInput, Path: pattern, Err: fmt.Errorf("no files match")}
	}
	return files, nil
}

// LoadFiles decodes every file in order. The first failure aborts the load.
func (p *Processor) LoadFiles(paths []string) (Set, error) {
	if len(paths) == 0 {
		return nil, Errorf(InvalidInput, "no tiles to combine")
	}

	set := make(Set, 0, len(paths))
	for _, path := range paths {
		img, err := imaging.Open(path, p.opts...)
		if err != nil {
			return nil, &Error{Kind: Decode, Path: path, Err: err}
		}
		set = append(set, Source{Name: path, Image: img})
	}
	return set, nil
}

// DecodeImage decodes a single tile read from r; name is used in errors.
func (p *Processor) DecodeImage(name string, r io.Reader) (Source, error) {
	img, err := imaging.Decode(r, p.opts...)
	if err != nil {
		return Source{}, &Error{Kind: Decode, Path: name, Err: err}
	}
	return Source{Name: name, Image: img}, nil
}

// EncodeImage writes img to w in the given format
func (p *Processor) EncodeImage(w io.Writer, img image.Image, format imaging.Format) error {
	if err := imaging.Encode(w, img, format); err != nil {
		return &Error{Kind: Encode, Err: err}
	}
	return nil
}

// WriteImage encodes img to filename, picking the format from the extension.
// The image is written to a temporary file next to filename and renamed into
// place, so filename is either fully written or untouched.
func (p *Processor) WriteImage(filename string, img image.Image) error {
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return &Error{Kind: Encode, Path: filename, Err: err}
	}

	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, ".tilesheet-*"+filepath.Ext(filename))
	if err != nil {
		return &Error{Kind: Encode, Path: filename, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, format); err != nil {
		tmp.Close()
		return &Error{Kind: Encode, Path: filename, Err: err}
	}
	// CreateTemp opens with 0600; the sheet gets the mode a plain create
	// would, or keeps the mode of the file it replaces.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(filename); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return &Error{Kind: Encode, Path: filename, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Kind: Encode, Path: filename, Err: err}
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return &Error{Kind: Encode, Path: filename, Err: err}
	}
	return nil
}

// ParseFormat maps a format name or file extension ("png", ".jpg") to an
// output format.
func ParseFormat(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, &Error{Kind: InvalidInput, Err: fmt.Errorf("unsupported output format %q", name)}
	}
	return f, nil
}

// ContentType returns the MIME type for an output format
func ContentType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	}
	return "image/png"
}

// ParseColor parses a "#rgb", "#rrggbb" or "#rrggbbaa" background color. An
// empty string or "transparent" yields nil, which leaves the canvas
// transparent.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") {
		return nil, nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	invalid := func(err error) error {
		return &Error{Kind: InvalidInput, Err: fmt.Errorf("invalid background color %q: %v", s, err)}
	}

	// colorful.Hex ignores trailing input, so the digits are checked here.
	switch len(s) {
	case 4, 7, 9:
	default:
		return nil, invalid(fmt.Errorf("want #rgb, #rrggbb or #rrggbbaa"))
	}
	if _, err := strconv.ParseUint(s[1:], 16, 32); err != nil {
		return nil, invalid(fmt.Errorf("not a hex number"))
	}

	alpha := uint8(0xff)
	if len(s) == 9 {
		a, _ := strconv.ParseUint(s[7:], 16, 8)
		alpha = uint8(a)
		s = s[:7]
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return nil, invalid(err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}
