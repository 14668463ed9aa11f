// Package shading - The cell-shading pipeline: parameter normalization, output
// dimension planning and the ordered smoothing, edge, saturation, quantization and
// compositing stages.
package shading

import (
	"math"

	"github.com/nvr-ai/go-cellshade/images"
)

// Parameter bounds.
const (
	MinEdgeThickness    = 1
	MaxEdgeThickness    = 10
	MinColorLevels      = 2
	MaxColorLevels      = 20
	MinSmoothingAmount  = 1
	MaxSmoothingAmount  = 15
	MinSaturationAmount = 0.0
	MaxSaturationAmount = 2.0
	MinTargetDimension  = 1
)

// Defaults used when a parameter is absent.
const (
	DefaultEdgeThickness    = 7
	DefaultColorLevels      = 8
	DefaultSmoothingAmount  = 7
	DefaultSaturationAmount = 1.0
	DefaultKeepRatio        = true
)

// Fixed filter constants.
const (
	// SigmaColor is the bilateral color tolerance.
	SigmaColor = 80.0
	// SigmaSpace is the bilateral spatial falloff.
	SigmaSpace = 80.0
	// MedianKernel is the speckle filter size applied to luma before thresholding.
	MedianKernel = 5
	// QuantizeAttempts is the number of k-means restarts.
	QuantizeAttempts = 10
)

// RawParameters carries caller-supplied parameters. A nil field is absent.
type RawParameters struct {
	EdgeThickness    *int     `json:"edge_thickness,omitempty"`
	ColorLevels      *int     `json:"color_levels,omitempty"`
	SmoothingAmount  *int     `json:"smoothing_amount,omitempty"`
	SaturationAmount *float64 `json:"saturation_amount,omitempty"`
	TargetWidth      *int     `json:"target_width,omitempty"`
	TargetHeight     *int     `json:"target_height,omitempty"`
	KeepRatio        *bool    `json:"keep_ratio,omitempty"`
}

// Ptr returns a pointer to v, for filling RawParameters.
func Ptr[T any](v T) *T {
	return &v
}

// Parameters is the resolved, in-range parameter set. It is a value: stages read
// it but never change it.
type Parameters struct {
	EdgeThickness    int     `json:"edge_thickness"`
	ColorLevels      int     `json:"color_levels"`
	SmoothingAmount  int     `json:"smoothing_amount"`
	SaturationAmount float64 `json:"saturation_amount"`
	// TargetWidth is 0 when absent.
	TargetWidth int `json:"target_width,omitempty"`
	// TargetHeight is 0 when absent.
	TargetHeight int  `json:"target_height,omitempty"`
	KeepRatio    bool `json:"keep_ratio"`
}

// DefaultParameters returns the parameters used when nothing is supplied.
func DefaultParameters() Parameters {
	return Parameters{
		EdgeThickness:    DefaultEdgeThickness,
		ColorLevels:      DefaultColorLevels,
		SmoothingAmount:  DefaultSmoothingAmount,
		SaturationAmount: DefaultSaturationAmount,
		KeepRatio:        DefaultKeepRatio,
	}
}

// HasTarget reports whether any target dimension is set.
func (p Parameters) HasTarget() bool {
	return p.TargetWidth > 0 || p.TargetHeight > 0
}

// BlockSize returns the adaptive threshold neighbourhood: the edge thickness made
// odd by rounding even values up, and never below 3.
func (p Parameters) BlockSize() int {
	b := p.EdgeThickness
	if b%2 == 0 {
		b++
	}
	if b < 3 {
		b = 3
	}
	return b
}

// ThresholdC returns the constant subtracted from the local mean. It is the edge
// thickness itself, even when BlockSize had to round it up.
func (p Parameters) ThresholdC() float64 {
	return float64(p.EdgeThickness)
}

// SaturationChanged reports whether the saturation stage has work to do.
func (p Parameters) SaturationChanged() bool {
	return p.SaturationAmount != 1.0
}

// Normalize resolves raw parameters.
//
// Knob values are clamped into range and absent knobs take their defaults. Target
// dimensions are not clamped: a present target outside [1, 3840] (width) or
// [1, 2160] (height) is rejected with a *ParameterError, as is a saturation that is
// not a finite number.
//
// Arguments:
//   - raw: The caller-supplied values.
//
// Returns:
//   - Parameters: The resolved parameters.
//   - error: A *ParameterError (matching ErrInvalidParameter) for a bad target or saturation.
func Normalize(raw RawParameters) (Parameters, error) {
	p := DefaultParameters()

	if raw.EdgeThickness != nil {
		p.EdgeThickness = clampInt(*raw.EdgeThickness, MinEdgeThickness, MaxEdgeThickness)
	}
	if raw.ColorLevels != nil {
		p.ColorLevels = clampInt(*raw.ColorLevels, MinColorLevels, MaxColorLevels)
	}
	if raw.SmoothingAmount != nil {
		p.SmoothingAmount = clampInt(*raw.SmoothingAmount, MinSmoothingAmount, MaxSmoothingAmount)
	}
	if raw.SaturationAmount != nil {
		s := *raw.SaturationAmount
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return Parameters{}, &ParameterError{Field: "saturation_amount", Value: s, Min: MinSaturationAmount, Max: MaxSaturationAmount}
		}
		p.SaturationAmount = math.Max(MinSaturationAmount, math.Min(MaxSaturationAmount, s))
	}
	if raw.KeepRatio != nil {
		p.KeepRatio = *raw.KeepRatio
	}

	if raw.TargetWidth != nil {
		w := *raw.TargetWidth
		if w < MinTargetDimension || w > images.MaxOutput.Width {
			return Parameters{}, &ParameterError{Field: "target_width", Value: w, Min: MinTargetDimension, Max: float64(images.MaxOutput.Width)}
		}
		p.TargetWidth = w
	}
	if raw.TargetHeight != nil {
		h := *raw.TargetHeight
		if h < MinTargetDimension || h > images.MaxOutput.Height {
			return Parameters{}, &ParameterError{Field: "target_height", Value: h, Min: MinTargetDimension, Max: float64(images.MaxOutput.Height)}
		}
		p.TargetHeight = h
	}

	return p, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
