package images

import (
	"crypto/md5"
	"fmt"
)

// Checksum generates a deterministic checksum for a BGR buffer to verify idempotency.
//
// Arguments:
// - img: The buffer to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string, or "empty" for an empty buffer.
//
// Example:
//
// ```go
//
//	sum := Checksum(frame)
//	fmt.Printf("Frame checksum: %s\n", sum)
//
// ```
func Checksum(img *BGR) string {
	if img == nil || len(img.Pix) == 0 {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%dx%d:", img.Width, img.Height)
	hash.Write(img.Pix)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
