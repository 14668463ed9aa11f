// Package images - Pixel buffers, encoded image containers and codecs used by the
// cell-shading pipeline.
package images

import (
	"path/filepath"
	"strings"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format Format `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Format represents supported image formats.
type Format string

// Format constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG Format = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG Format = "png"
	// FormatGIF is the GIF image format.
	FormatGIF Format = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP Format = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF Format = "tiff"
	// FormatWebP is the WebP image format.
	FormatWebP Format = "webp"
)

// extensions maps lowercase file extensions (with the dot) to their format.
var extensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWebP,
}

// FormatFromExtension returns the format matching the extension of a file name
// or path. The lookup is case-insensitive.
func FormatFromExtension(name string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return f, ok
}

// ParseFormat resolves a format name such as "png" or "jpg".
func ParseFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	return FormatFromExtension("x." + name)
}

// Extension returns the canonical file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tiff"
	case "":
		return ""
	default:
		return "." + string(f)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF, FormatWebP:
		return "image/" + string(f)
	default:
		return "application/octet-stream"
	}
}
