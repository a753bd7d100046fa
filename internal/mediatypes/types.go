package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the broad kind of a stored file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents anything the converter leaves alone.
	FileTypeOther FileType = "other"
)

// MIME types the converter reasons about.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeWebP = "image/webp"
	MimeAVIF = "image/avif"
	MimeMP4  = "video/mp4"

	// MimeUnknown is reported for unrecognized extensions.
	MimeUnknown = "application/octet-stream"
)

// MimeTypes maps lowercase extensions (with the leading dot) to MIME types.
var MimeTypes = map[string]string{
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
	".jpe":  MimeJPEG,
	".png":  MimePNG,
	".gif":  MimeGIF,
	".webp": MimeWebP,
	".avif": MimeAVIF,
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".svg":  "image/svg+xml",

	".mp4":  MimeMP4,
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
}

// UploadImageTypes are the image MIME types the upload hook hands to the
// conversion pipeline. GIF is accepted here but has no decoder, so it ends
// as an unsupported format.
var UploadImageTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
	MimeGIF:  true,
	MimeWebP: true,
	MimeAVIF: true,
}

// BatchImageTypes are the stored MIME types a batch run converts. WebP is
// included so oversized converted files can be brought back within bounds.
var BatchImageTypes = map[string]bool{
	MimeJPEG: true,
	MimePNG:  true,
	MimeWebP: true,
	MimeAVIF: true,
}

// GetMimeType returns the MIME type for an extension such as ".JPG".
// Returns MimeUnknown if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return MimeUnknown
}

// MimeFromPath returns the MIME type implied by a file name.
func MimeFromPath(path string) string {
	return GetMimeType(filepath.Ext(path))
}

// NormalizeMime lowercases a MIME type and drops parameters.
func NormalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "image/jpg" || mime == "image/pjpeg" {
		return MimeJPEG
	}
	return mime
}

// GetFileType classifies a MIME type.
func GetFileType(mime string) FileType {
	mime = NormalizeMime(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mime, "video/"):
		return FileTypeVideo
	default:
		return FileTypeOther
	}
}

// IsBatchConvertible reports whether a stored item takes part in batch runs.
// An empty stored MIME falls back to the path's extension.
func IsBatchConvertible(mime, path string) bool {
	if strings.TrimSpace(mime) == "" {
		mime = MimeFromPath(path)
	}
	return BatchImageTypes[NormalizeMime(mime)]
}
