// Package preprocess turns image files into normalized NCHW float32 tensors
// ready for an image-classification model.
package preprocess

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/quantaml/quanta/internal/tensor"
)

// Channel statistics used by most torchvision-trained classifiers.
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// DecodeError reports a file that could not be decoded as an image.
type DecodeError struct {
	Path  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("preprocess: decode %s: %v", e.Path, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Options fixes the target geometry and normalization constants.
type Options struct {
	Width  int
	Height int
	Mean   [3]float32
	Std    [3]float32
}

// DefaultOptions matches the usual 224x224 ImageNet input.
func DefaultOptions() Options {
	return Options{Width: 224, Height: 224, Mean: DefaultMean, Std: DefaultStd}
}

// Preprocessor is a pure mapping from an image to a (1, 3, H, W) tensor.
type Preprocessor struct {
	opts Options
}

func New(opts Options) (*Preprocessor, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("preprocess: invalid target size %dx%d", opts.Width, opts.Height)
	}
	for c := 0; c < 3; c++ {
		if opts.Std[c] == 0 {
			return nil, fmt.Errorf("preprocess: zero std for channel %d", c)
		}
	}
	return &Preprocessor{opts: opts}, nil
}

func (p *Preprocessor) Options() Options { return p.opts }

// FromFile decodes path and preprocesses it. Decode failures surface as
// *DecodeError and are not recovered here.
func (p *Preprocessor) FromFile(path string) (*tensor.Dense, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Cause: err}
	}
	return p.FromImage(img)
}

// FromImage resizes, reorders HWC to CHW, normalizes per channel and adds the
// leading batch dimension.
func (p *Preprocessor) FromImage(img image.Image) (*tensor.Dense, error) {
	w, h := p.opts.Width, p.opts.Height
	resized := imaging.Resize(img, w, h, imaging.Lanczos)

	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			// NRGBA pixels; 8-bit channels.
			i := resized.PixOffset(x, y)
			r := float32(resized.Pix[i])
			g := float32(resized.Pix[i+1])
			b := float32(resized.Pix[i+2])
			data[row+x] = (r/255 - p.opts.Mean[0]) / p.opts.Std[0]
			data[plane+row+x] = (g/255 - p.opts.Mean[1]) / p.opts.Std[1]
			data[2*plane+row+x] = (b/255 - p.opts.Mean[2]) / p.opts.Std[2]
		}
	}

	return tensor.NewDense([]int64{1, 3, int64(h), int64(w)}, data)
}
