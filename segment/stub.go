//go:build !cgo

package segment

import (
	"fmt"
	"image"
)

// ONNX is unavailable without cgo.
type ONNX struct{}

// NewONNX always fails in builds without cgo.
func NewONNX(Options) (*ONNX, error) {
	return nil, fmt.Errorf("%w: %w", ErrInputUnavailable, ErrCGORequired)
}

func (*ONNX) Segment(image.Image) (*image.Gray, error) { return nil, ErrCGORequired }

func (*ONNX) Close() error { return nil }
