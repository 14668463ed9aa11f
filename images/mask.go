package images

// Mask values. A mask pixel is either clear (color passes through) or an edge
// (color is suppressed to black when composited).
const (
	// MaskEdge marks an edge pixel.
	MaskEdge uint8 = 0
	// MaskClear marks a pixel without an edge.
	MaskClear uint8 = 255
)

// Gray is a single channel 8-bit buffer.
type Gray struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewGray allocates a zeroed single channel buffer.
func NewGray(width, height int) *Gray {
	return &Gray{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Mask is a binary single channel edge mask. Every pixel is MaskEdge or MaskClear.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates a mask with every pixel clear.
func NewMask(width, height int) *Mask {
	m := &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
	for i := range m.Pix {
		m.Pix[i] = MaskClear
	}
	return m
}

// IsEdge reports whether the pixel at (x, y) is an edge.
func (m *Mask) IsEdge(x, y int) bool {
	return m.Pix[y*m.Width+x] == MaskEdge
}

// EdgeCount returns the number of edge pixels.
func (m *Mask) EdgeCount() int {
	n := 0
	for _, v := range m.Pix {
		if v == MaskEdge {
			n++
		}
	}
	return n
}

// Binary reports whether every pixel holds one of the two mask values.
func (m *Mask) Binary() bool {
	for _, v := range m.Pix {
		if v != MaskEdge && v != MaskClear {
			return false
		}
	}
	return true
}

// ToBGR replicates the mask into three channels for bitwise compositing.
func (m *Mask) ToBGR() *BGR {
	dst := NewBGR(m.Width, m.Height)
	for i, v := range m.Pix {
		dst.Pix[i*3+0] = v
		dst.Pix[i*3+1] = v
		dst.Pix[i*3+2] = v
	}
	return dst
}

// Composite returns src AND mask, channel by channel. Edge pixels become black and
// clear pixels keep their color. The caller guarantees matching dimensions.
func Composite(src *BGR, mask *Mask) *BGR {
	dst := NewBGR(src.Width, src.Height)
	for i, v := range mask.Pix {
		j := i * 3
		dst.Pix[j+0] = src.Pix[j+0] & v
		dst.Pix[j+1] = src.Pix[j+1] & v
		dst.Pix[j+2] = src.Pix[j+2] & v
	}
	return dst
}
