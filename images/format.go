package images

import (
	"path/filepath"
	"strings"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatTIFF ImageFormat = "tiff"
	FormatBMP  ImageFormat = "bmp"
	FormatWebP ImageFormat = "webp"
	// FormatCR2 is a Canon raw file. Only its embedded full-size JPEG preview is read.
	FormatCR2 ImageFormat = "cr2"
)

var extensionFormats = map[string]ImageFormat{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".bmp":  FormatBMP,
	".webp": FormatWebP,
	".cr2":  FormatCR2,
}

// FormatFromPath returns the format implied by the file extension, compared
// case-insensitively. ok is false for unknown extensions.
func FormatFromPath(path string) (format ImageFormat, ok bool) {
	format, ok = extensionFormats[strings.ToLower(filepath.Ext(path))]
	return format, ok
}

// HasExtension reports whether path ends in one of exts, ignoring case.
func HasExtension(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
