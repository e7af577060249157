package constants

import "strings"

// FileType is the detected type of a source file.
type FileType string

const (
	PDF     FileType = "PDF"
	IMAGE   FileType = "IMAGE"
	UNKNOWN FileType = "UNKNOWN"
)

// AllowedExtensions holds the default allowed file extensions for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToType maps a normalized extension to a FileType.
func MapExtToType(ext string) FileType {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "gif", "heic", "heif":
		return IMAGE
	default:
		return UNKNOWN
	}
}

// IsHEICExt reports whether the extension belongs to the HEIC/HEIF family.
func IsHEICExt(ext string) bool {
	e := NormalizeExt(ext)
	return e == "heic" || e == "heif"
}
