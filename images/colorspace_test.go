package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuma(t *testing.T) {
	assert.Equal(t, uint8(0), Luma(0, 0, 0))
	assert.Equal(t, uint8(255), Luma(255, 255, 255))
	// Pure channels weighted 0.114 / 0.587 / 0.299.
	assert.Equal(t, uint8(29), Luma(255, 0, 0))
	assert.Equal(t, uint8(150), Luma(0, 255, 0))
	assert.Equal(t, uint8(76), Luma(0, 0, 255))
}

func TestToGray(t *testing.T) {
	img := NewBGR(2, 1)
	img.Set(1, 0, 255, 255, 255)
	g := ToGray(img)
	assert.Equal(t, []uint8{0, 255}, g.Pix)
}

func TestBGRToHSV(t *testing.T) {
	tests := []struct {
		name    string
		b, g, r uint8
		h, s, v uint8
	}{
		{"red", 0, 0, 255, 0, 255, 255},
		{"green", 0, 255, 0, 60, 255, 255},
		{"blue", 255, 0, 0, 120, 255, 255},
		{"white", 255, 255, 255, 0, 0, 255},
		{"black", 0, 0, 0, 0, 0, 0},
		{"half red", 64, 64, 128, 0, 128, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := BGRToHSV(tt.b, tt.g, tt.r)
			assert.Equal(t, []uint8{tt.h, tt.s, tt.v}, []uint8{h, s, v})
		})
	}
}

func TestHSVToBGR(t *testing.T) {
	b, g, r := HSVToBGR(0, 255, 255)
	assert.Equal(t, []uint8{0, 0, 255}, []uint8{b, g, r})
	b, g, r = HSVToBGR(60, 255, 255)
	assert.Equal(t, []uint8{0, 255, 0}, []uint8{b, g, r})
	b, g, r = HSVToBGR(120, 255, 255)
	assert.Equal(t, []uint8{255, 0, 0}, []uint8{b, g, r})
	b, g, r = HSVToBGR(33, 0, 77)
	assert.Equal(t, []uint8{77, 77, 77}, []uint8{b, g, r})
}

func TestHSVRoundTripIsClose(t *testing.T) {
	for b := 0; b < 256; b += 51 {
		for g := 0; g < 256; g += 51 {
			for r := 0; r < 256; r += 51 {
				h, s, v := BGRToHSV(uint8(b), uint8(g), uint8(r))
				bb, gg, rr := HSVToBGR(h, s, v)
				assert.InDelta(t, b, int(bb), 4)
				assert.InDelta(t, g, int(gg), 4)
				assert.InDelta(t, r, int(rr), 4)
			}
		}
	}
}

func TestScaleSaturationZeroIsGray(t *testing.T) {
	img := NewBGR(1, 1)
	img.Set(0, 0, 40, 90, 200)
	out := ScaleSaturation(img, 0)
	b, g, r := out.At(0, 0)
	assert.Equal(t, b, g)
	assert.Equal(t, g, r)
	assert.Equal(t, uint8(200), r)
}

func TestScaleSaturationClamps(t *testing.T) {
	img := NewBGR(1, 1)
	img.Set(0, 0, 0, 0, 255)
	out := ScaleSaturation(img, 2)
	b, g, r := out.At(0, 0)
	assert.Equal(t, []uint8{0, 0, 255}, []uint8{b, g, r})
}

func TestScaleSaturationIncreases(t *testing.T) {
	img := NewBGR(1, 1)
	img.Set(0, 0, 100, 100, 150)
	_, s0, _ := BGRToHSV(100, 100, 150)
	out := ScaleSaturation(img, 1.5)
	_, s1, _ := BGRToHSV(out.At(0, 0))
	assert.Greater(t, s1, s0)
	assert.NotSame(t, img, out)
}
