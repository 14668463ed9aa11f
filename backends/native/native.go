// Package native - Pure-Go implementation of the cell-shading backend.
package native

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/images/kernels"
	"github.com/nvr-ai/go-cellshade/quantize"
)

// Name is the backend identifier.
const Name = "native"

// Options configures the native backend.
type Options struct {
	// Seed makes clustering reproducible. Zero seeds from the clock.
	Seed int64
	// Pool lets kernels reuse work buffers. Nil allocates per call.
	Pool *kernels.Pool
}

// Backend runs every stage in Go with no cgo dependency.
type Backend struct {
	seed  int64
	pool  *kernels.Pool
	calls atomic.Int64
}

// New creates a native backend.
func New(opts Options) *Backend {
	return &Backend{seed: opts.Seed, pool: opts.Pool}
}

// Name implements shading.Backend.
func (b *Backend) Name() string {
	return Name
}

// Resize implements shading.Backend.
func (b *Backend) Resize(src *images.BGR, width, height int, interp images.Interpolation) (*images.BGR, error) {
	return images.Resize(src, width, height, interp)
}

// Smooth implements shading.Backend.
func (b *Backend) Smooth(src *images.BGR, diameter int, sigmaColor, sigmaSpace float64) (*images.BGR, error) {
	return kernels.Bilateral(src, diameter, sigmaColor, sigmaSpace, b.pool)
}

// EdgeMask implements shading.Backend.
func (b *Backend) EdgeMask(src *images.BGR, medianKsize, block int, c float64) (*images.Mask, error) {
	if !src.Valid() {
		return nil, errors.New("invalid source buffer")
	}
	gray := images.ToGray(src)
	blurred, err := kernels.Median(gray, medianKsize, b.pool)
	if err != nil {
		return nil, errors.Wrap(err, "median blur")
	}
	mask, err := kernels.AdaptiveThresholdMean(blurred, block, c, b.pool)
	if err != nil {
		return nil, errors.Wrap(err, "adaptive threshold")
	}
	return mask, nil
}

// Saturate implements shading.Backend.
func (b *Backend) Saturate(src *images.BGR, amount float64) (*images.BGR, error) {
	if !src.Valid() {
		return nil, errors.New("invalid source buffer")
	}
	return images.ScaleSaturation(src, amount), nil
}

// Quantize implements shading.Backend. With a fixed seed every call starts from the
// same random sequence, so identical inputs give identical output.
func (b *Backend) Quantize(src *images.BGR, k, attempts int, criteria quantize.Criteria) (*images.BGR, error) {
	out, _, err := quantize.Posterize(src, quantize.Options{
		K:        k,
		Attempts: attempts,
		Criteria: criteria,
		Rand:     b.rand(),
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Composite implements shading.Backend.
func (b *Backend) Composite(src *images.BGR, mask *images.Mask) (*images.BGR, error) {
	if !src.Valid() || mask == nil {
		return nil, errors.New("invalid composite input")
	}
	if src.Width != mask.Width || src.Height != mask.Height || len(mask.Pix) != mask.Width*mask.Height {
		return nil, errors.Errorf("mask %dx%d does not match image %dx%d", mask.Width, mask.Height, src.Width, src.Height)
	}
	return images.Composite(src, mask), nil
}

// rand returns a generator private to one call so concurrent calls never share
// state.
func (b *Backend) rand() *rand.Rand {
	if b.seed == 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano() + b.calls.Add(1)))
	}
	return rand.New(rand.NewSource(b.seed))
}
