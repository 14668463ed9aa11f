package kernels

import (
	"fmt"

	"github.com/nvr-ai/go-cellshade/images"
)

// Median replaces every pixel of a single channel buffer with the median of its
// ksize x ksize neighbourhood. Samples outside the image repeat the border pixel.
// ksize must be odd and at least 3.
func Median(src *images.Gray, ksize int, pool *Pool) (*images.Gray, error) {
	if src == nil || src.Width <= 0 || src.Height <= 0 || len(src.Pix) != src.Width*src.Height {
		return nil, fmt.Errorf("invalid source buffer")
	}
	if ksize < 3 || ksize%2 == 0 {
		return nil, fmt.Errorf("median kernel size must be odd and >= 3, got %d", ksize)
	}

	w, h := src.Width, src.Height
	r := ksize / 2
	n := ksize * ksize
	mid := n / 2

	window := pool.GetBytes(n)
	defer pool.PutBytes(window)

	dst := images.NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			k := 0
			for dy := -r; dy <= r; dy++ {
				row := mapCoord(y+dy, h, EdgeClamp) * w
				for dx := -r; dx <= r; dx++ {
					window[k] = src.Pix[row+mapCoord(x+dx, w, EdgeClamp)]
					k++
				}
			}
			dst.Pix[y*w+x] = selectNth(window, mid)
		}
	}
	return dst, nil
}

// selectNth returns the n-th smallest value, reordering buf in place.
func selectNth(buf []uint8, n int) uint8 {
	lo, hi := 0, len(buf)-1
	for lo < hi {
		pivot := buf[(lo+hi)/2]
		i, j := lo, hi
		for i <= j {
			for buf[i] < pivot {
				i++
			}
			for buf[j] > pivot {
				j--
			}
			if i <= j {
				buf[i], buf[j] = buf[j], buf[i]
				i++
				j--
			}
		}
		switch {
		case n <= j:
			hi = j
		case n >= i:
			lo = i
		default:
			return buf[n]
		}
	}
	return buf[n]
}
