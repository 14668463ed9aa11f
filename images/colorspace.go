package images

import "github.com/chewxy/math32"

// Fixed-point luma coefficients (ITU-R BT.601, 14 bit) as used by OpenCV's
// BGR2GRAY conversion for 8-bit images.
const (
	lumaShift = 14
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
)

// HueRange is the exclusive upper bound of the 8-bit hue channel. Hue is stored as
// degrees/2 so a full turn fits in a byte.
const HueRange = 180

// Luma returns the 8-bit luma of a B, G, R triple.
func Luma(b, g, r uint8) uint8 {
	return uint8((uint32(b)*lumaB + uint32(g)*lumaG + uint32(r)*lumaR + 1<<(lumaShift-1)) >> lumaShift)
}

// ToGray converts a BGR buffer to single channel luma.
func ToGray(src *BGR) *Gray {
	dst := NewGray(src.Width, src.Height)
	for i := range dst.Pix {
		j := i * 3
		dst.Pix[i] = Luma(src.Pix[j], src.Pix[j+1], src.Pix[j+2])
	}
	return dst
}

// BGRToHSV converts one pixel to 8-bit HSV with H in [0,180) and S, V in [0,255].
func BGRToHSV(b, g, r uint8) (h, s, v uint8) {
	fb, fg, fr := float32(b), float32(g), float32(r)
	hi := math32.Max(fb, math32.Max(fg, fr))
	lo := math32.Min(fb, math32.Min(fg, fr))
	diff := hi - lo

	v = uint8(hi)
	if hi > 0 {
		s = uint8(math32.Round(diff * 255 / hi))
	}
	if diff == 0 {
		return 0, s, v
	}

	var hh float32
	switch hi {
	case fr:
		hh = fg - fb
	case fg:
		hh = fb - fr + 2*diff
	default:
		hh = fr - fg + 4*diff
	}
	hue := math32.Round(hh * (HueRange / 6) / diff)
	if hue < 0 {
		hue += HueRange
	}
	if hue >= HueRange {
		hue -= HueRange
	}
	return uint8(hue), s, v
}

// hsvSectors lists, per 60 degree sector, which of the four intermediate values
// becomes B, G and R.
var hsvSectors = [6][3]int{{1, 3, 0}, {1, 0, 2}, {3, 0, 1}, {0, 2, 1}, {0, 1, 3}, {2, 1, 0}}

// HSVToBGR converts one 8-bit HSV pixel back to B, G, R.
func HSVToBGR(h, s, v uint8) (b, g, r uint8) {
	fs := float32(s) / 255
	fv := float32(v) / 255
	if s == 0 {
		return v, v, v
	}

	fh := float32(h) * 6 / HueRange
	for fh < 0 {
		fh += 6
	}
	for fh >= 6 {
		fh -= 6
	}
	sector := int(math32.Floor(fh))
	f := fh - float32(sector)

	tab := [4]float32{
		fv,
		fv * (1 - fs),
		fv * (1 - fs*f),
		fv * (1 - fs*(1-f)),
	}
	idx := hsvSectors[sector]
	return toByte(tab[idx[0]] * 255), toByte(tab[idx[1]] * 255), toByte(tab[idx[2]] * 255)
}

// toByte rounds and saturates a float to the 0-255 range.
func toByte(x float32) uint8 {
	x = math32.Round(x)
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// ScaleSaturation multiplies the saturation of every pixel by amount, clamping to
// 0-255 and truncating like a float to uint8 cast, and returns a new buffer.
func ScaleSaturation(src *BGR, amount float64) *BGR {
	dst := NewBGR(src.Width, src.Height)
	k := float32(amount)
	for i := 0; i < len(src.Pix); i += 3 {
		h, s, v := BGRToHSV(src.Pix[i], src.Pix[i+1], src.Pix[i+2])
		scaled := math32.Min(math32.Max(float32(s)*k, 0), 255)
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = HSVToBGR(h, uint8(scaled), v)
	}
	return dst
}
