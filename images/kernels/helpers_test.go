package kernels

import (
	"math/rand"

	"github.com/nvr-ai/go-cellshade/images"
)

func genPlane(w, h int, seed int64) []uint8 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]uint8, w*h)
	for i := range out {
		out[i] = uint8(rng.Intn(256))
	}
	return out
}

func genBGR(w, h int, seed int64) *images.BGR {
	rng := rand.New(rand.NewSource(seed))
	img := images.NewBGR(w, h)
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func naiveBoxMean(src []uint8, w, h, block int) []uint8 {
	r := block / 2
	area := block * block
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := 0
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					s += int(src[mapCoord(y+dy, h, EdgeClamp)*w+mapCoord(x+dx, w, EdgeClamp)])
				}
			}
			out[y*w+x] = uint8((s + area/2) / area)
		}
	}
	return out
}
