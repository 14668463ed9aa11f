// Package opencv - Cell-shading backend running every stage through OpenCV (gocv).
package opencv

import (
	"image"
	"runtime"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/quantize"
)

// Name is the backend identifier.
const Name = "opencv"

// Options configures the OpenCV backend.
type Options struct {
	// Seed is applied to OpenCV's random generator before clustering. Zero leaves
	// the generator untouched.
	Seed int64
}

// Backend runs the stages with OpenCV.
type Backend struct {
	seed int64
}

// New creates an OpenCV backend.
func New(opts Options) *Backend {
	return &Backend{seed: opts.Seed}
}

// Name implements shading.Backend.
func (b *Backend) Name() string {
	return Name
}

// Resize implements shading.Backend.
func (b *Backend) Resize(src *images.BGR, width, height int, interp images.Interpolation) (*images.BGR, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	flag, err := interpolationFlag(interp)
	if err != nil {
		return nil, err
	}

	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, flag)

	return fromMat(resized)
}

// Smooth implements shading.Backend.
func (b *Backend) Smooth(src *images.BGR, diameter int, sigmaColor, sigmaSpace float64) (*images.BGR, error) {
	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.BilateralFilter(mat, &smoothed, diameter, sigmaColor, sigmaSpace)

	return fromMat(smoothed)
}

// EdgeMask implements shading.Backend.
func (b *Backend) EdgeMask(src *images.BGR, medianKsize, block int, c float64) (*images.Mask, error) {
	if block < 3 || block%2 == 0 {
		return nil, errors.Errorf("block size must be odd and greater than 1, got %d", block)
	}
	if medianKsize < 3 || medianKsize%2 == 0 {
		return nil, errors.Errorf("median kernel size must be odd and >= 3, got %d", medianKsize)
	}

	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.MedianBlur(gray, &blurred, medianKsize)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.AdaptiveThreshold(blurred, &edges, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, block, float32(c))

	if edges.Empty() || edges.Channels() != 1 || edges.Cols() != src.Width || edges.Rows() != src.Height {
		return nil, errors.New("adaptive threshold produced an unexpected mask")
	}
	return &images.Mask{Width: src.Width, Height: src.Height, Pix: edges.ToBytes()}, nil
}

// Saturate implements shading.Backend.
func (b *Backend) Saturate(src *images.BGR, amount float64) (*images.BGR, error) {
	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)

	pix := hsv.ToBytes()
	k := float32(amount)
	for i := 1; i < len(pix); i += 3 {
		s := float32(pix[i]) * k
		if s < 0 {
			s = 0
		}
		if s > 255 {
			s = 255
		}
		pix[i] = uint8(s)
	}

	scaled, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV8UC3, pix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to wrap hsv buffer")
	}
	defer scaled.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(scaled, &bgr, gocv.ColorHSVToBGR)

	return fromMat(bgr)
}

// Quantize implements shading.Backend.
func (b *Backend) Quantize(src *images.BGR, k, attempts int, criteria quantize.Criteria) (*images.BGR, error) {
	if !src.Valid() {
		return nil, errors.New("invalid source buffer")
	}
	if k < 1 {
		return nil, errors.Wrapf(quantize.ErrInvalidK, "k=%d", k)
	}
	n := src.Width * src.Height
	if n < k {
		// cv::kmeans requires at least k samples; every pixel is its own centre.
		out, _, err := quantize.Posterize(src, quantize.Options{K: k, Attempts: attempts, Criteria: criteria})
		return out, err
	}

	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	samples := mat.Reshape(1, n)
	defer samples.Close()
	data := gocv.NewMat()
	defer data.Close()
	samples.ConvertTo(&data, gocv.MatTypeCV32F)

	labels := gocv.NewMat()
	defer labels.Close()
	centers := gocv.NewMat()
	defer centers.Close()

	term := gocv.NewTermCriteria(gocv.Count|gocv.EPS, criteria.MaxIterations, criteria.Epsilon)
	b.kmeans(data, k, &labels, term, attempts, &centers)

	if labels.Rows() != n || centers.Rows() != k {
		return nil, errors.Errorf("kmeans returned %d labels and %d centres, want %d and %d", labels.Rows(), centers.Rows(), n, k)
	}

	palette := make([][3]uint8, k)
	for c := 0; c < k; c++ {
		for j := 0; j < 3; j++ {
			palette[c][j] = truncate(centers.GetFloatAt(c, j))
		}
	}

	dst := images.NewBGR(src.Width, src.Height)
	for i := 0; i < n; i++ {
		col := palette[labels.GetIntAt(i, 0)]
		dst.Pix[i*3], dst.Pix[i*3+1], dst.Pix[i*3+2] = col[0], col[1], col[2]
	}
	return dst, nil
}

// kmeans runs cv::kmeans. OpenCV's generator is thread local, so a seeded run
// pins the goroutine to its thread between seeding and clustering.
func (b *Backend) kmeans(data gocv.Mat, k int, labels *gocv.Mat, term gocv.TermCriteria, attempts int, centers *gocv.Mat) {
	if b.seed != 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		gocv.SetRNGSeed(int(b.seed))
	}
	gocv.KMeans(data, k, labels, term, attempts, gocv.KMeansRandomCenters, centers)
}

// Composite implements shading.Backend.
func (b *Backend) Composite(src *images.BGR, mask *images.Mask) (*images.BGR, error) {
	if mask == nil || mask.Width != src.Width || mask.Height != src.Height {
		return nil, errors.New("mask does not match image")
	}

	mat, err := toMat(src)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	maskMat, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8U, mask.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to wrap mask")
	}
	defer maskMat.Close()

	mask3 := gocv.NewMat()
	defer mask3.Close()
	gocv.CvtColor(maskMat, &mask3, gocv.ColorGrayToBGR)

	out := gocv.NewMat()
	defer out.Close()
	gocv.BitwiseAnd(mat, mask3, &out)

	return fromMat(out)
}

func interpolationFlag(interp images.Interpolation) (gocv.InterpolationFlags, error) {
	switch interp {
	case images.InterpolationArea:
		return gocv.InterpolationArea, nil
	case images.InterpolationLanczos:
		return gocv.InterpolationLanczos4, nil
	default:
		return 0, errors.Errorf("unsupported interpolation: %s", interp)
	}
}

// toMat copies a BGR buffer into a CV_8UC3 Mat.
func toMat(img *images.BGR) (gocv.Mat, error) {
	if !img.Valid() {
		return gocv.NewMat(), errors.New("invalid source buffer")
	}
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to create mat")
	}
	return mat, nil
}

// fromMat copies a CV_8UC3 Mat into a new BGR buffer.
func fromMat(mat gocv.Mat) (*images.BGR, error) {
	if mat.Empty() {
		return nil, errors.New("opencv returned an empty image")
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Errorf("opencv returned mat type %v, want 8UC3", mat.Type())
	}
	return images.NewBGRFromBytes(mat.Cols(), mat.Rows(), mat.ToBytes())
}

func truncate(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
