package kernels

import (
	"fmt"
	"math"

	"github.com/nvr-ai/go-cellshade/images"
)

// AdaptiveThresholdMean binarizes a single channel buffer against the mean of each
// pixel's block x block neighbourhood (border samples repeat the edge pixel).
//
// A pixel is clear when src - mean > -ceil(c) and an edge otherwise, so with a
// positive c only pixels noticeably darker than their surroundings become edges
// and a uniform region stays clear.
//
// Arguments:
//   - src: Single channel input, usually blurred luma.
//   - block: Neighbourhood size, odd and greater than 1.
//   - c: Constant subtracted from the mean.
//   - pool: Optional buffer pool.
//
// Returns:
//   - *images.Mask: Binary mask with the dimensions of src.
//   - error: An error if the input or block size is invalid.
func AdaptiveThresholdMean(src *images.Gray, block int, c float64, pool *Pool) (*images.Mask, error) {
	if src == nil || src.Width <= 0 || src.Height <= 0 || len(src.Pix) != src.Width*src.Height {
		return nil, fmt.Errorf("invalid source buffer")
	}
	if block < 3 || block%2 == 0 {
		return nil, fmt.Errorf("block size must be odd and greater than 1, got %d", block)
	}

	w, h := src.Width, src.Height
	mean := BoxMean(src.Pix, w, h, block, EdgeClamp, pool)
	delta := int(math.Ceil(c))

	dst := images.NewMask(w, h)
	for i, v := range src.Pix {
		if int(v)-int(mean[i]) > -delta {
			dst.Pix[i] = images.MaskClear
		} else {
			dst.Pix[i] = images.MaskEdge
		}
	}
	return dst, nil
}
