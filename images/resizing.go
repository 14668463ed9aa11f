package images

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/transform"
	"github.com/nfnt/resize"
)

// Interpolation selects the resampling filter used when resizing.
type Interpolation int

const (
	// InterpolationArea averages every source pixel covered by a destination
	// pixel. Best for shrinking.
	InterpolationArea Interpolation = iota
	// InterpolationLanczos uses a windowed sinc (a=3). Best for enlarging.
	InterpolationLanczos
)

// String returns the filter name.
func (i Interpolation) String() string {
	switch i {
	case InterpolationArea:
		return "area"
	case InterpolationLanczos:
		return "lanczos"
	default:
		return fmt.Sprintf("interpolation(%d)", int(i))
	}
}

// ChooseInterpolation picks the filter for a resize from the source to the
// destination size: area averaging when the destination has fewer pixels,
// Lanczos otherwise.
func ChooseInterpolation(srcWidth, srcHeight, dstWidth, dstHeight int) Interpolation {
	if dstWidth*dstHeight < srcWidth*srcHeight {
		return InterpolationArea
	}
	return InterpolationLanczos
}

// Resize resamples a BGR buffer to the given width and height.
//
// Arguments:
//   - src: The buffer to resize.
//   - width: The target width in pixels.
//   - height: The target height in pixels.
//   - interp: The resampling filter.
//
// Returns:
//   - *BGR: A new buffer of exactly width x height pixels.
//   - error: An error if the dimensions are invalid.
func Resize(src *BGR, width, height int, interp Interpolation) (*BGR, error) {
	if !src.Valid() {
		return nil, fmt.Errorf("invalid source buffer")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	if src.SameSize(width, height) {
		return src.Clone(), nil
	}

	var out image.Image
	switch interp {
	case InterpolationArea:
		out = transform.Resize(src.ToRGBA(), width, height, transform.Box)
	case InterpolationLanczos:
		out = resize.Resize(uint(width), uint(height), src.ToRGBA(), resize.Lanczos3)
	default:
		return nil, fmt.Errorf("unsupported interpolation: %s", interp)
	}

	dst := FromImage(out)
	if !dst.SameSize(width, height) {
		return nil, fmt.Errorf("resampler produced %dx%d, want %dx%d", dst.Width, dst.Height, width, height)
	}
	return dst, nil
}
