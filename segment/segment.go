// Package segment separates a foreground subject from the background. The
// model runs on ONNX Runtime in cgo builds; Worker runs it in the background
// and hands each mask back to the pipeline that asked for it.
package segment

import (
	"errors"
	"image"
	"image/color"
	"strings"

	resize "github.com/nfnt/resize"
)

var (
	// ErrInputUnavailable wraps model and runtime failures.
	ErrInputUnavailable = errors.New("segmentation unavailable")
	// ErrCGORequired is returned by builds without cgo.
	ErrCGORequired = errors.New("segmentation requires CGO support; rebuild with CGO_ENABLED=1")
)

// Segmenter produces a confidence mask for an image: 255 where the subject is.
type Segmenter interface {
	Segment(img image.Image) (*image.Gray, error)
	Close() error
}

// Options configures the ONNX segmenter.
type Options struct {
	ModelPath string
	// ORTSharedLibraryPath locates onnxruntime. When empty the
	// ONNXRUNTIME_SHARED_LIBRARY_PATH environment variable is used.
	ORTSharedLibraryPath string

	InputName  string
	OutputName string
	// InputSize is the square model resolution.
	InputSize int
	// Layout is "NHWC" or "NCHW".
	Layout string
	// Threshold, when above zero, turns confidences into a hard 0/255 mask.
	Threshold float32
}

// DefaultOptions matches the common 256x256 selfie segmentation export.
func DefaultOptions() Options {
	return Options{
		InputName:  "input",
		OutputName: "output",
		InputSize:  256,
		Layout:     "NHWC",
	}
}

// inputTensor resizes img to size x size and lays it out as float RGB in
// [0, 1].
func inputTensor(img image.Image, size int, layout string) []float32 {
	scaled := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	n := size * size
	data := make([]float32, 3*n)
	nchw := strings.EqualFold(strings.TrimSpace(layout), "NCHW")
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBAModel.Convert(scaled.At(x, y)).(color.NRGBA)
			r, g, b := float32(c.R)/255, float32(c.G)/255, float32(c.B)/255
			if nchw {
				data[i], data[n+i], data[2*n+i] = r, g, b
			} else {
				data[3*i], data[3*i+1], data[3*i+2] = r, g, b
			}
			i++
		}
	}
	return data
}

// maskFromScores converts a size x size confidence map to a gray mask.
func maskFromScores(scores []float32, size int, threshold float32) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, size, size))
	for i := 0; i < size*size && i < len(scores); i++ {
		v := scores[i]
		if threshold > 0 {
			if v >= threshold {
				v = 1
			} else {
				v = 0
			}
		}
		switch {
		case v != v || v <= 0:
			m.Pix[i] = 0
		case v >= 1:
			m.Pix[i] = 255
		default:
			m.Pix[i] = uint8(v*255 + 0.5)
		}
	}
	return m
}
