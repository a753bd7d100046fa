package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-converter/internal/mediatypes"
)

// Format is a source or target raster format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

// Target is the one format every conversion produces.
const Target = FormatWebP

var (
	// ErrUnsupportedFormat is returned before any I/O for formats no codec decodes.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDecode is returned when the file content can not be decoded as the
	// resolved format.
	ErrDecode = errors.New("decode failed")
	// ErrEncode is returned when the encoder rejects the image.
	ErrEncode = errors.New("encode failed")
	// ErrDestinationExists is returned when the encode destination is already
	// present. Nothing is written in that case.
	ErrDestinationExists = errors.New("destination exists")
	// ErrStorageUnavailable is returned when the destination can not be created.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Extension returns the file extension for f without a leading dot.
func (f Format) Extension() string {
	return string(f)
}

// MimeType returns the MIME type for f.
func (f Format) MimeType() string {
	switch f {
	case FormatJPEG:
		return mediatypes.MimeJPEG
	case FormatPNG:
		return mediatypes.MimePNG
	case FormatGIF:
		return mediatypes.MimeGIF
	case FormatWebP:
		return mediatypes.MimeWebP
	case FormatAVIF:
		return mediatypes.MimeAVIF
	}
	return mediatypes.MimeUnknown
}

// ParseFormat accepts a MIME type ("image/avif"), a bare name ("jpg") or an
// extension (".PNG"). It returns "" for anything unrecognized.
func ParseFormat(s string) Format {
	s = strings.TrimPrefix(mediatypes.NormalizeMime(s), ".")
	switch s {
	case "jpg", "jpeg", "jpe", mediatypes.MimeJPEG:
		return FormatJPEG
	case "png", mediatypes.MimePNG:
		return FormatPNG
	case "gif", mediatypes.MimeGIF:
		return FormatGIF
	case "webp", mediatypes.MimeWebP:
		return FormatWebP
	case "avif", mediatypes.MimeAVIF:
		return FormatAVIF
	}
	return ""
}

// ResolveFormat picks the format to decode path as. A recognized declared
// format wins over the extension.
func ResolveFormat(path, declared string) (Format, error) {
	if f := ParseFormat(declared); f != "" {
		return f, nil
	}
	if f := ParseFormat(filepath.Ext(path)); f != "" {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// Sniff identifies a file from its leading bytes. It returns "" when the
// content matches none of the known formats.
func Sniff(path string) (Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, 16)
	n, err := file.Read(header)
	if err != nil {
		return "", err
	}
	return sniffBytes(header[:n]), nil
}

func sniffBytes(header []byte) Format {
	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return FormatJPEG
	case len(header) >= 8 && string(header[:8]) == "\x89PNG\r\n\x1a\n":
		return FormatPNG
	case len(header) >= 4 && string(header[:4]) == "GIF8":
		return FormatGIF
	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WEBP":
		return FormatWebP
	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		if brand := string(header[8:12]); brand == "avif" || brand == "avis" {
			return FormatAVIF
		}
	}
	return ""
}
