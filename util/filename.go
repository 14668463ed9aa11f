package util

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimestampLayout formats the timestamps embedded in stored file names.
const TimestampLayout = "20060102_150405"

// RenderedSuffix separates the original name from the render timestamp.
const RenderedSuffix = "_cellshaded_"

// AllowedExtensions is the upload allow-list, lowercase without the dot.
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
	"tiff": true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// AllowedFile reports whether a file name has an allowed image extension.
func AllowedFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return false
	}
	return AllowedExtensions[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// SecureFilename reduces a client supplied file name to a safe, flat ASCII name.
//
// Accents are decomposed and dropped, path separators and whitespace become
// underscores, anything outside [A-Za-z0-9_.-] is removed and leading or trailing
// dots and underscores are trimmed. The result may be empty.
//
// @example
//
//	util.SecureFilename("../../etc/My Photo.JPG") // "etc_My_Photo.JPG"
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	ascii := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] < 0x80 {
			ascii = append(ascii, name[i])
		}
	}
	name = string(ascii)

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// UploadName returns the stored name of an upload: the sanitized client name
// prefixed with the upload time.
func UploadName(original string, now time.Time) string {
	return now.Format(TimestampLayout) + "_" + SecureFilename(original)
}

// RenderedName returns the file name of a render of the given source file,
// keeping its extension unless ext is set.
func RenderedName(source string, now time.Time, ext string) string {
	base := filepath.Base(source)
	srcExt := filepath.Ext(base)
	if ext == "" {
		ext = srcExt
	}
	return strings.TrimSuffix(base, srcExt) + RenderedSuffix + now.Format(TimestampLayout) + ext
}
