package kernels

import (
	"fmt"
	"math"

	"github.com/nvr-ai/go-cellshade/images"
)

// spatialTap is one sample position of the circular bilateral window.
type spatialTap struct {
	dx, dy int
	weight float32
}

// BilateralRadius returns the window radius used for a diameter. A non-positive
// diameter derives the radius from sigmaSpace; the radius is never below 1.
func BilateralRadius(diameter int, sigmaSpace float64) int {
	var r int
	if diameter <= 0 {
		r = int(math.Round(sigmaSpace * 1.5))
	} else {
		r = diameter / 2
	}
	if r < 1 {
		r = 1
	}
	return r
}

// Bilateral applies an edge-preserving bilateral filter to a BGR buffer.
//
// Every output pixel is the weighted mean of the samples inside a circular window
// of the given diameter. A sample's weight is the product of a Gaussian of its
// spatial distance (sigmaSpace) and a Gaussian of its color distance (sigmaColor),
// where color distance is the sum of absolute channel differences. Flat regions
// blur, strong color steps survive. Samples outside the image are reflected
// without repeating the border pixel.
//
// Arguments:
//   - src: The buffer to smooth.
//   - diameter: Neighbourhood diameter in pixels.
//   - sigmaColor: Color tolerance; larger values blur across stronger edges.
//   - sigmaSpace: Spatial falloff.
//   - pool: Optional buffer pool.
//
// Returns:
//   - *images.BGR: A new buffer with the same dimensions.
//   - error: An error if the source buffer is invalid.
func Bilateral(src *images.BGR, diameter int, sigmaColor, sigmaSpace float64, pool *Pool) (*images.BGR, error) {
	if !src.Valid() {
		return nil, fmt.Errorf("invalid source buffer")
	}
	if sigmaColor <= 0 {
		sigmaColor = 1
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 1
	}

	r := BilateralRadius(diameter, sigmaSpace)
	w, h := src.Width, src.Height

	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)

	// Color distance is the L1 sum over three channels: 0..765.
	colorWeight := pool.GetFloats(3 * 256)
	defer pool.PutFloats(colorWeight)
	for i := range colorWeight {
		colorWeight[i] = float32(math.Exp(float64(i*i) * colorCoeff))
	}

	taps := make([]spatialTap, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			dist := math.Sqrt(float64(dx*dx + dy*dy))
			if dist > float64(r) {
				continue
			}
			taps = append(taps, spatialTap{dx: dx, dy: dy, weight: float32(math.Exp(dist * dist * spaceCoeff))})
		}
	}

	// Pad once so the inner loop indexes without bounds remapping.
	pw, ph := w+2*r, h+2*r
	padded := pool.GetBytes(3 * pw * ph)
	defer pool.PutBytes(padded)
	for py := 0; py < ph; py++ {
		sy := mapCoord(py-r, h, EdgeReflect101)
		for px := 0; px < pw; px++ {
			sx := mapCoord(px-r, w, EdgeReflect101)
			si := (sy*w + sx) * 3
			di := (py*pw + px) * 3
			padded[di], padded[di+1], padded[di+2] = src.Pix[si], src.Pix[si+1], src.Pix[si+2]
		}
	}

	offsets := make([]int, len(taps))
	for k, t := range taps {
		offsets[k] = (t.dy*pw + t.dx) * 3
	}

	dst := images.NewBGR(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := ((y+r)*pw + (x + r)) * 3
			b0, g0, r0 := int(padded[c]), int(padded[c+1]), int(padded[c+2])

			var sumB, sumG, sumR, wsum float32
			for k, off := range offsets {
				i := c + off
				b, g, rr := int(padded[i]), int(padded[i+1]), int(padded[i+2])
				wt := taps[k].weight * colorWeight[abs(b-b0)+abs(g-g0)+abs(rr-r0)]
				sumB += float32(b) * wt
				sumG += float32(g) * wt
				sumR += float32(rr) * wt
				wsum += wt
			}

			o := (y*w + x) * 3
			dst.Pix[o+0] = roundByte(sumB / wsum)
			dst.Pix[o+1] = roundByte(sumG / wsum)
			dst.Pix[o+2] = roundByte(sumR / wsum)
		}
	}

	return dst, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// roundByte rounds to nearest and saturates to 0-255.
func roundByte(v float32) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
