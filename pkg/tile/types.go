package tile

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Kind classifies a tile sheet failure.
type Kind int

const (
	// InvalidInput covers missing arguments, empty matches and empty tile sets.
	InvalidInput Kind = iota + 1
	// Decode means a source file could not be read as an image.
	Decode
	// Encode means the sheet could not be written to its destination.
	Encode
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case Decode:
		return "decode error"
	case Encode:
		return "encode error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every stage of the tile sheet pipeline.
type Error struct {
	Kind Kind
	Path string // file or form part involved, if any
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// Source is one decoded input image.
type Source struct {
	Name  string
	Image image.Image
}

// Set is the ordered list of decoded tiles that make up a sheet.
type Set []Source

// Images returns the decoded images in order.
func (s Set) Images() []image.Image {
	imgs := make([]image.Image, len(s))
	for i, src := range s {
		imgs[i] = src.Image
	}
	return imgs
}

// SheetOptions contains all configuration for building a tile sheet
type SheetOptions struct {
	BuildCardinals bool
	Background     color.Color // nil means transparent
}
