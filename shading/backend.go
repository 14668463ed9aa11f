package shading

import (
	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/quantize"
)

// Backend implements the pixel operations of the pipeline. Every method returns a
// new buffer (Saturate and Resize may return a copy) and never modifies its input.
// Implementations must be safe for concurrent use by independent pipelines.
type Backend interface {
	// Name identifies the implementation in logs.
	Name() string
	// Resize resamples src to exactly width x height with the given filter.
	Resize(src *images.BGR, width, height int, interp images.Interpolation) (*images.BGR, error)
	// Smooth applies an edge-preserving bilateral filter of the given diameter.
	Smooth(src *images.BGR, diameter int, sigmaColor, sigmaSpace float64) (*images.BGR, error)
	// EdgeMask converts src to luma, median filters it with medianKsize and
	// thresholds it against the block x block local mean minus c.
	EdgeMask(src *images.BGR, medianKsize, block int, c float64) (*images.Mask, error)
	// Saturate multiplies the HSV saturation of every pixel by amount.
	Saturate(src *images.BGR, amount float64) (*images.BGR, error)
	// Quantize replaces every pixel with the centre of its k-means colour cluster.
	Quantize(src *images.BGR, k, attempts int, criteria quantize.Criteria) (*images.BGR, error)
	// Composite blacks out the pixels of src where mask marks an edge.
	Composite(src *images.BGR, mask *images.Mask) (*images.BGR, error)
}
