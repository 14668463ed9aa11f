package images

import (
	"fmt"
	"image"
	"image/color"
)

// BGR is an 8-bit, three channel pixel buffer stored row-major in B, G, R order.
//
// The layout matches an OpenCV CV_8UC3 Mat so buffers can be handed to gocv
// without reordering. A BGR is treated as a value: stages produce new buffers
// rather than mutating their input.
type BGR struct {
	// Width of the buffer in pixels.
	Width int
	// Height of the buffer in pixels.
	Height int
	// Pix holds 3*Width*Height bytes.
	Pix []uint8
}

// NewBGR allocates a zeroed (black) buffer of the given size.
func NewBGR(width, height int) *BGR {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &BGR{Width: width, Height: height, Pix: make([]uint8, 3*width*height)}
}

// NewBGRFromBytes wraps an existing byte slice. It fails when the slice length does
// not match the dimensions.
func NewBGRFromBytes(width, height int, pix []uint8) (*BGR, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	if len(pix) != 3*width*height {
		return nil, fmt.Errorf("pixel buffer holds %d bytes, need %d for %dx%d", len(pix), 3*width*height, width, height)
	}
	return &BGR{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts any image.Image into a BGR buffer. Alpha is dropped after
// un-premultiplying, which is what a color decode into three channels does.
func FromImage(img image.Image) *BGR {
	b := img.Bounds()
	dst := NewBGR(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < dst.Height; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+4*dst.Width]
			out := dst.Pix[y*dst.Width*3 : (y+1)*dst.Width*3]
			for x := 0; x < dst.Width; x++ {
				out[x*3+0] = row[x*4+2]
				out[x*3+1] = row[x*4+1]
				out[x*3+2] = row[x*4+0]
			}
		}
		return dst
	case *image.RGBA:
		// Opaque RGBA is the common decode result; alpha < 255 falls through to
		// the generic model conversion below.
		opaque := true
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] != 0xff {
				opaque = false
				break
			}
		}
		if opaque {
			for y := 0; y < dst.Height; y++ {
				off := src.PixOffset(b.Min.X, b.Min.Y+y)
				row := src.Pix[off : off+4*dst.Width]
				out := dst.Pix[y*dst.Width*3 : (y+1)*dst.Width*3]
				for x := 0; x < dst.Width; x++ {
					out[x*3+0] = row[x*4+2]
					out[x*3+1] = row[x*4+1]
					out[x*3+2] = row[x*4+0]
				}
			}
			return dst
		}
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.Pix[i+0] = c.B
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.R
			i += 3
		}
	}
	return dst
}

// ToRGBA converts the buffer to an opaque *image.RGBA.
func (m *BGR) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
		dst.Pix[j+0] = m.Pix[i+2]
		dst.Pix[j+1] = m.Pix[i+1]
		dst.Pix[j+2] = m.Pix[i+0]
		dst.Pix[j+3] = 0xff
	}
	return dst
}

// Bounds returns the buffer rectangle anchored at the origin.
func (m *BGR) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Clone returns a deep copy.
func (m *BGR) Clone() *BGR {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &BGR{Width: m.Width, Height: m.Height, Pix: pix}
}

// At returns the B, G, R values of a pixel.
func (m *BGR) At(x, y int) (b, g, r uint8) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set writes the B, G, R values of a pixel.
func (m *BGR) Set(x, y int, b, g, r uint8) {
	i := (y*m.Width + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = b, g, r
}

// Fill sets every pixel to the same color.
func (m *BGR) Fill(b, g, r uint8) {
	for i := 0; i < len(m.Pix); i += 3 {
		m.Pix[i], m.Pix[i+1], m.Pix[i+2] = b, g, r
	}
}

// SameSize reports whether two buffers share dimensions.
func (m *BGR) SameSize(width, height int) bool {
	return m.Width == width && m.Height == height
}

// Valid reports whether the buffer is non-empty and its pixel slice matches its size.
func (m *BGR) Valid() bool {
	return m != nil && m.Width > 0 && m.Height > 0 && len(m.Pix) == 3*m.Width*m.Height
}

// Equal reports exact pixel equality.
func (m *BGR) Equal(other *BGR) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Width != other.Width || m.Height != other.Height || len(m.Pix) != len(other.Pix) {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// PackColor packs a B, G, R triple into a single key.
func PackColor(b, g, r uint8) uint32 {
	return uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

// UnpackColor reverses PackColor.
func UnpackColor(c uint32) (b, g, r uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// ColorHistogram counts the pixels of every distinct color.
func (m *BGR) ColorHistogram() map[uint32]int {
	hist := make(map[uint32]int)
	for i := 0; i < len(m.Pix); i += 3 {
		hist[PackColor(m.Pix[i], m.Pix[i+1], m.Pix[i+2])]++
	}
	return hist
}

// DistinctColors returns the number of distinct colors in the buffer.
func (m *BGR) DistinctColors() int {
	return len(m.ColorHistogram())
}
