package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"maps"
	"slices"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WEBP decoder
)

// MaxDecodePixels caps the pixel count accepted by Decode.
const MaxDecodePixels = 50_000_000

// DefaultJPEGQuality matches the default quality OpenCV's imwrite uses for JPEG.
const DefaultJPEGQuality = 95

// EncodeOptions tunes the encoders. The zero value is usable.
type EncodeOptions struct {
	// JPEGQuality in [1,100]; 0 selects DefaultJPEGQuality.
	JPEGQuality int
	// PNGCompression selects the zlib level for PNG output.
	PNGCompression png.CompressionLevel
	// WebPLossy switches WebP output from lossless to lossy at JPEGQuality.
	WebPLossy bool
}

// DecodeConfig reads only the header of an encoded image.
func DecodeConfig(data []byte) (image.Config, Format, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", err
	}
	f, _ := ParseFormat(name)
	return cfg, f, nil
}

// Decode decodes an encoded image into a BGR buffer.
//
// Arguments:
//   - data: The encoded bytes (JPEG, PNG, GIF, BMP, TIFF or WebP).
//
// Returns:
//   - *BGR: The decoded pixels.
//   - Format: The detected format.
//   - error: An error if the data is empty, too large or not a known image.
func Decode(data []byte) (*BGR, Format, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image data")
	}

	cfg, _, err := DecodeConfig(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("invalid dimensions: width=%d, height=%d", cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > MaxDecodePixels {
		return nil, "", fmt.Errorf("image is too big: %dx%d", cfg.Width, cfg.Height)
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	f, _ := ParseFormat(name)

	return FromImage(img), f, nil
}

// Encode serializes a BGR buffer in the requested format.
//
// Arguments:
//   - img: The pixels to encode.
//   - format: The output format.
//   - opts: Encoder tuning.
//
// Returns:
//   - []byte: The encoded image.
//   - error: An error if the buffer is invalid, the format unsupported or the encoder fails.
func Encode(img *BGR, format Format, opts EncodeOptions) ([]byte, error) {
	if !img.Valid() {
		return nil, fmt.Errorf("invalid pixel buffer")
	}

	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	m := img.ToRGBA()
	var buf bytes.Buffer
	var err error

	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, m, &jpeg.Options{Quality: quality})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: opts.PNGCompression}
		err = enc.Encode(&buf, m)
	case FormatGIF:
		err = encodeGIF(&buf, img, m)
	case FormatBMP:
		err = bmp.Encode(&buf, m)
	case FormatTIFF:
		err = tiff.Encode(&buf, m, &tiff.Options{Compression: tiff.Deflate})
	case FormatWebP:
		err = webp.Encode(&buf, m, &webp.Options{Lossless: !opts.WebPLossy, Quality: float32(quality)})
	default:
		return nil, fmt.Errorf("unsupported image format: %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// encodeGIF writes the buffer with a palette of its own colors when it has at most
// 256 of them, so posterized renders keep their flat areas exactly. Larger color
// sets fall back to the Plan 9 palette without dithering.
func encodeGIF(w io.Writer, img *BGR, m *image.RGBA) error {
	hist := img.ColorHistogram()
	if len(hist) > 256 {
		return gif.Encode(w, m, &gif.Options{NumColors: 256, Drawer: draw.Src})
	}

	palette := make(color.Palette, 0, len(hist))
	index := make(map[uint32]uint8, len(hist))
	for _, c := range slices.Sorted(maps.Keys(hist)) {
		b, g, r := UnpackColor(c)
		index[c] = uint8(len(palette))
		palette = append(palette, color.RGBA{R: r, G: g, B: b, A: 0xff})
	}

	p := image.NewPaletted(img.Bounds(), palette)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+3, j+1 {
		p.Pix[j] = index[PackColor(img.Pix[i], img.Pix[i+1], img.Pix[i+2])]
	}
	return gif.EncodeAll(w, &gif.GIF{Image: []*image.Paletted{p}, Delay: []int{0}})
}
