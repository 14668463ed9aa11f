// Package util - Helpers for reading image files and naming uploads and renders.
package util

import (
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cellshade/images"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is the format implied by the file extension.
	Format images.Format
}

// LoadImageFile reads one image file whose extension is on the upload allow-list.
//
// Arguments:
// - path: Path to the image file.
//
// Returns:
// - ImageFile: The raw bytes of the file with its format.
// - error: Error if the extension is not allowed or reading fails.
func LoadImageFile(path string) (ImageFile, error) {
	if !AllowedFile(path) {
		return ImageFile{}, errors.Errorf("%s: unsupported file type", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "failed to read %s", path)
	}
	f, _ := images.FormatFromExtension(path)
	return ImageFile{Path: path, Data: data, Format: f}, nil
}
