// Command fxsegment runs the object mask model on one image and writes the
// mask as a grayscale PNG at the image's size. Useful for checking a model
// export before pointing the studio at it.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	resize "github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/stevecastle/fxlab/segment"
)

func main() {
	var (
		modelPath  string
		imagePath  string
		outPath    string
		inputName  string
		outputName string
		ortLibPath string
		layout     string
		size       int
		threshold  float64
	)

	def := segment.DefaultOptions()
	flag.StringVar(&modelPath, "model", "", "Path to ONNX segmentation model")
	flag.StringVar(&imagePath, "image", "", "Path to input image file")
	flag.StringVar(&outPath, "out", "mask.png", "Path of the mask PNG to write")
	flag.StringVar(&inputName, "input", def.InputName, "Model input tensor name")
	flag.StringVar(&outputName, "output", def.OutputName, "Model output tensor name")
	flag.StringVar(&ortLibPath, "ort", "", "Path to onnxruntime shared library (optional)")
	flag.StringVar(&layout, "layout", def.Layout, "Input layout: NHWC or NCHW")
	flag.IntVar(&size, "size", def.InputSize, "Square model input size")
	flag.Float64Var(&threshold, "threshold", 0.5, "Mask threshold in (0,1); 0 keeps soft confidences")
	flag.Parse()

	if modelPath == "" || imagePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --model and --image are required")
		flag.Usage()
		os.Exit(2)
	}

	opts := def
	opts.ModelPath = modelPath
	opts.ORTSharedLibraryPath = ortLibPath
	opts.InputName = inputName
	opts.OutputName = outputName
	opts.Layout = layout
	opts.InputSize = size
	opts.Threshold = float32(threshold)

	img, err := loadImage(imagePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	seg, err := segment.NewONNX(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer seg.Close()

	mask, err := seg.Segment(img)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	b := img.Bounds()
	scaled := resize.Resize(uint(b.Dx()), uint(b.Dy()), mask, resize.Bilinear)
	if err := writePNG(outPath, scaled); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %dx%d mask to %s (%.1f%% subject)\n", b.Dx(), b.Dy(), outPath, coverage(mask)*100)
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// coverage is the fraction of mask pixels at or above half confidence.
func coverage(m *image.Gray) float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v >= 128 {
			n++
		}
	}
	return float64(n) / float64(len(m.Pix))
}
