// Package kernels - Pure-Go neighbourhood filters over 8-bit buffers: edge-preserving
// bilateral smoothing, median blur, sliding-window box means and adaptive thresholding.
package kernels

import (
	"sync"
)

// EdgeMode defines how sampling behaves outside the image bounds.
// - Clamp: repeats edge pixels (OpenCV BORDER_REPLICATE).
// - Reflect101: reflects without repeating the edge pixel (OpenCV BORDER_DEFAULT).
type EdgeMode int

const (
	EdgeClamp EdgeMode = iota
	EdgeReflect101
)

// Pool lets callers reuse large work buffers across invocations to reduce GC
// pressure. A nil *Pool allocates fresh buffers. Pool is safe for concurrent use.
type Pool struct {
	bytes  sync.Pool // *[]uint8
	sums   sync.Pool // *[]uint32
	floats sync.Pool // *[]float32
}

// GetBytes returns a byte slice of length n. Contents are unspecified.
func (p *Pool) GetBytes(n int) []uint8 {
	if p == nil {
		return make([]uint8, n)
	}
	if v := p.bytes.Get(); v != nil {
		buf := *(v.(*[]uint8))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]uint8, n)
}

// PutBytes returns a slice obtained from GetBytes.
func (p *Pool) PutBytes(buf []uint8) {
	if p == nil || buf == nil {
		return
	}
	p.bytes.Put(&buf)
}

// GetSums returns a uint32 slice of length n. Contents are unspecified.
func (p *Pool) GetSums(n int) []uint32 {
	if p == nil {
		return make([]uint32, n)
	}
	if v := p.sums.Get(); v != nil {
		buf := *(v.(*[]uint32))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]uint32, n)
}

// PutSums returns a slice obtained from GetSums.
func (p *Pool) PutSums(buf []uint32) {
	if p == nil || buf == nil {
		return
	}
	p.sums.Put(&buf)
}

// GetFloats returns a float32 slice of length n. Contents are unspecified.
func (p *Pool) GetFloats(n int) []float32 {
	if p == nil {
		return make([]float32, n)
	}
	if v := p.floats.Get(); v != nil {
		buf := *(v.(*[]float32))
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]float32, n)
}

// PutFloats returns a slice obtained from GetFloats.
func (p *Pool) PutFloats(buf []float32) {
	if p == nil || buf == nil {
		return
	}
	p.floats.Put(&buf)
}

// boxSumHoriz writes, for every pixel of a w x h single channel plane, the sum of
// the 2r+1 samples centred on it along the row. The sliding window means we:
//   - Compute an initial sum for x in [-r .. +r], respecting edges.
//   - For each step to the right, subtract the sample leaving on the left
//     and add the sample entering on the right. This keeps O(1) cost per pixel.
func boxSumHoriz(src []uint8, dst []uint32, w, h, r int, edge EdgeMode) {
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := dst[y*w : (y+1)*w]

		var sum uint32
		for dx := -r; dx <= r; dx++ {
			sum += uint32(row[mapCoord(dx, w, edge)])
		}
		for x := 0; x < w; x++ {
			out[x] = sum
			// Next window: remove left, add right.
			sum += uint32(row[mapCoord(x+r+1, w, edge)])
			sum -= uint32(row[mapCoord(x-r, w, edge)])
		}
	}
}

// boxSumVert mirrors the horizontal pass along columns, summing row sums into a
// full (2r+1)^2 window total.
func boxSumVert(src, dst []uint32, w, h, r int, edge EdgeMode) {
	for x := 0; x < w; x++ {
		var sum uint32
		for dy := -r; dy <= r; dy++ {
			sum += src[mapCoord(dy, h, edge)*w+x]
		}
		for y := 0; y < h; y++ {
			dst[y*w+x] = sum
			// Slide: remove above, add below.
			sum += src[mapCoord(y+r+1, h, edge)*w+x]
			sum -= src[mapCoord(y-r, h, edge)*w+x]
		}
	}
}

// BoxMean returns the rounded mean of the block x block neighbourhood of every
// pixel of a w x h plane, sampling outside the plane with the given edge mode.
// block must be odd and positive.
//
// Performance: O(W*H) per pass, independent of the block size.
func BoxMean(src []uint8, w, h, block int, edge EdgeMode, pool *Pool) []uint8 {
	r := block / 2
	area := uint32(block * block)

	rows := pool.GetSums(w * h)
	totals := pool.GetSums(w * h)
	defer pool.PutSums(rows)
	defer pool.PutSums(totals)

	boxSumHoriz(src, rows, w, h, r, edge)
	boxSumVert(rows, totals, w, h, r, edge)

	mean := make([]uint8, w*h)
	for i, s := range totals {
		mean[i] = uint8((s + area/2) / area)
	}
	return mean
}

// mapCoord maps an index i to [0, n) according to edge mode.
// For Clamp: clamp to [0, n-1].
// For Reflect101: ... -2,-1,0,1,2, ... -> 2,1,0,1,2, ... (edge not repeated).
func mapCoord(i, n int, mode EdgeMode) int {
	if i >= 0 && i < n {
		return i
	}
	if mode == EdgeReflect101 && n > 1 {
		for i < 0 || i >= n {
			if i < 0 {
				i = -i
			} else {
				i = 2*n - i - 2
			}
		}
		return i
	}
	if i < 0 {
		return 0
	}
	return n - 1
}
