//go:build cgo

package segment

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnv(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if libPath == "" {
			libPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
		}
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return err
		}
	}
	envRefs++
	return nil
}

func releaseEnv() {
	envMu.Lock()
	defer envMu.Unlock()
	envRefs--
	if envRefs == 0 {
		_ = ort.DestroyEnvironment()
	}
}

// ONNX runs a segmentation model with ONNX Runtime. One session is reused
// for every call; Segment is not safe for concurrent use.
type ONNX struct {
	opts    Options
	env     bool
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	session *ort.AdvancedSession
}

// NewONNX loads the model.
func NewONNX(opts Options) (*ONNX, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("%w: no model configured", ErrInputUnavailable)
	}
	if opts.InputSize <= 0 {
		return nil, fmt.Errorf("%w: invalid input size %d", ErrInputUnavailable, opts.InputSize)
	}
	if opts.InputName == "" || opts.OutputName == "" {
		return nil, fmt.Errorf("%w: input and output names must be provided", ErrInputUnavailable)
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	if err := acquireEnv(opts.ORTSharedLibraryPath); err != nil {
		return nil, fmt.Errorf("%w: onnxruntime: %v", ErrInputUnavailable, err)
	}

	s := int64(opts.InputSize)
	inShape := ort.NewShape(1, s, s, 3)
	if opts.Layout == "NCHW" {
		inShape = ort.NewShape(1, 3, s, s)
	}
	o := &ONNX{opts: opts, env: true}
	var err error
	if o.input, err = ort.NewEmptyTensor[float32](inShape); err != nil {
		o.Close()
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	if o.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, s, s, 1)); err != nil {
		o.Close()
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	o.session, err = ort.NewAdvancedSession(opts.ModelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.Value{o.input}, []ort.Value{o.output}, nil)
	if err != nil {
		o.Close()
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}
	return o, nil
}

// Segment runs the model on img and returns an InputSize square mask.
func (o *ONNX) Segment(img image.Image) (*image.Gray, error) {
	if o.session == nil {
		return nil, errors.New("segmenter closed")
	}
	copy(o.input.GetData(), inputTensor(img, o.opts.InputSize, o.opts.Layout))
	if err := o.session.Run(); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	return maskFromScores(o.output.GetData(), o.opts.InputSize, o.opts.Threshold), nil
}

// Close releases the session and its tensors.
func (o *ONNX) Close() error {
	if o.session != nil {
		o.session.Destroy()
		o.session = nil
	}
	if o.input != nil {
		o.input.Destroy()
		o.input = nil
	}
	if o.output != nil {
		o.output.Destroy()
		o.output = nil
	}
	if o.env {
		releaseEnv()
		o.env = false
	}
	return nil
}
