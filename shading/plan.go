package shading

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cellshade/images"
)

// DimensionPlan is the resolved output size for one source image.
type DimensionPlan struct {
	SourceWidth  int `json:"source_width"`
	SourceHeight int `json:"source_height"`
	Width        int `json:"width"`
	Height       int `json:"height"`
}

// NeedsResize reports whether the plan differs from the source size.
func (d DimensionPlan) NeedsResize() bool {
	return d.Width != d.SourceWidth || d.Height != d.SourceHeight
}

// Interpolation returns the filter for carrying out the plan.
func (d DimensionPlan) Interpolation() images.Interpolation {
	return images.ChooseInterpolation(d.SourceWidth, d.SourceHeight, d.Width, d.Height)
}

// String implements fmt.Stringer.
func (d DimensionPlan) String() string {
	return fmt.Sprintf("%dx%d -> %dx%d", d.SourceWidth, d.SourceHeight, d.Width, d.Height)
}

// PlanDimensions computes the output size of a source image.
//
// Without targets the source size is kept. With keep_ratio, width wins when both
// targets are set and the missing side follows the source aspect ratio (rounded);
// a plan larger than images.MaxOutput is then scaled down uniformly, the limiting
// side landing exactly on its bound and the other truncated. Without keep_ratio
// each side is its target, or the source side when absent.
//
// Arguments:
//   - srcWidth: Source width in pixels.
//   - srcHeight: Source height in pixels.
//   - p: Normalized parameters.
//
// Returns:
//   - DimensionPlan: The output size, each side at least 1.
//   - error: An error if the source size is not positive.
func PlanDimensions(srcWidth, srcHeight int, p Parameters) (DimensionPlan, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return DimensionPlan{}, errors.Errorf("invalid source dimensions %dx%d", srcWidth, srcHeight)
	}

	plan := DimensionPlan{SourceWidth: srcWidth, SourceHeight: srcHeight, Width: srcWidth, Height: srcHeight}
	if !p.HasTarget() {
		return plan, nil
	}

	if !p.KeepRatio {
		if p.TargetWidth > 0 {
			plan.Width = p.TargetWidth
		}
		if p.TargetHeight > 0 {
			plan.Height = p.TargetHeight
		}
		return plan, nil
	}

	aspect := float64(srcWidth) / float64(srcHeight)
	w, h := float64(p.TargetWidth), float64(p.TargetHeight)
	if p.TargetWidth > 0 {
		h = math.Round(w / aspect)
	} else {
		w = math.Round(h * aspect)
	}

	maxW, maxH := float64(images.MaxOutput.Width), float64(images.MaxOutput.Height)
	if w > maxW || h > maxH {
		sw, sh := maxW/w, maxH/h
		// The epsilon keeps exact products such as 4000*0.72 from truncating to
		// one pixel less.
		if sw <= sh {
			h = math.Floor(h*sw + 1e-9)
			w = maxW
		} else {
			w = math.Floor(w*sh + 1e-9)
			h = maxH
		}
	}

	plan.Width = maxInt(1, int(w))
	plan.Height = maxInt(1, int(h))
	return plan, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
