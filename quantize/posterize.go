package quantize

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cellshade/images"
)

// Palette is the ordered list of output colours (B, G, R).
type Palette [][3]uint8

// Posterize replaces every pixel of img with the centre of its colour cluster.
//
// Colours are first collapsed into a histogram so clustering runs over distinct
// colours weighted by pixel count, which minimises the same objective as
// clustering every pixel. Centres are truncated to 8-bit.
//
// Arguments:
//   - img: The image to posterize.
//   - opts: K is the number of colour levels.
//
// Returns:
//   - *images.BGR: A new image with at most K distinct colours.
//   - Palette: The truncated centre colours.
//   - error: An error if the image is empty or K is invalid.
//
// @example
//
//	out, palette, err := quantize.Posterize(img, quantize.Options{K: 8})
//	if err != nil {
//		return err
//	}
//	fmt.Println(len(palette))
func Posterize(img *images.BGR, opts Options) (*images.BGR, Palette, error) {
	if !img.Valid() {
		return nil, nil, errors.Wrap(ErrNoPoints, "posterize")
	}

	hist := img.ColorHistogram()
	keys := make([]uint32, 0, len(hist))
	for c := range hist {
		keys = append(keys, c)
	}
	// Map iteration order is random; sort so a fixed seed reproduces the result.
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]Point, len(keys))
	weights := make([]float64, len(keys))
	for i, c := range keys {
		b, g, r := images.UnpackColor(c)
		points[i] = Point{float64(b), float64(g), float64(r)}
		weights[i] = float64(hist[c])
	}

	res, err := KMeans(points, weights, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "posterize")
	}

	palette := make(Palette, len(res.Centers))
	for i, ctr := range res.Centers {
		palette[i] = [3]uint8{truncate(ctr[0]), truncate(ctr[1]), truncate(ctr[2])}
	}

	lookup := make(map[uint32][3]uint8, len(keys))
	for i, c := range keys {
		lookup[c] = palette[res.Labels[i]]
	}

	dst := images.NewBGR(img.Width, img.Height)
	for i := 0; i < len(img.Pix); i += 3 {
		col := lookup[images.PackColor(img.Pix[i], img.Pix[i+1], img.Pix[i+2])]
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = col[0], col[1], col[2]
	}
	return dst, palette, nil
}

// truncate converts a centre coordinate to uint8 the way a float to uint8 cast does,
// saturating outside the byte range.
func truncate(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
