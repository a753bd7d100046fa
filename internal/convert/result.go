package convert

import (
	"encoding/json"
	"errors"
)

// Kind classifies the outcome of one conversion.
type Kind int

const (
	OK Kind = iota
	NotFound
	UnsupportedFormat
	DecodeFailed
	AlreadyConverted
	EncodeFailed
	StorageUnavailable
)

var (
	// ErrNotFound is reported when the source file does not exist.
	ErrNotFound = errors.New("source not found")
	// ErrAlreadyConverted is reported for sources already in the target
	// format and within bounds.
	ErrAlreadyConverted = errors.New("already converted")
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "converted"
	case NotFound:
		return "not_found"
	case UnsupportedFormat:
		return "unsupported"
	case DecodeFailed:
		return "decode_failed"
	case AlreadyConverted:
		return "already_converted"
	case EncodeFailed:
		return "encode_failed"
	case StorageUnavailable:
		return "storage_unavailable"
	}
	return "unknown"
}

// MarshalJSON renders the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Request names the file to convert.
type Request struct {
	Path string `json:"path"`
	// DeclaredFormat overrides the extension; a MIME type or format name.
	DeclaredFormat string `json:"mime_type,omitempty"`
	// AttachmentID, when non-zero, is updated with the new path and title.
	AttachmentID int64 `json:"attachment_id,omitempty"`
}

// Result is the outcome of one conversion. Err wraps the sentinel errors of
// this package and of package media.
type Result struct {
	Success   bool   `json:"success"`
	Kind      Kind   `json:"kind"`
	Source    string `json:"source"`
	NewPath   string `json:"new_path,omitempty"`
	NewFormat string `json:"new_format,omitempty"`
	Title     string `json:"title,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

func failure(source string, kind Kind, err error) Result {
	r := Result{Kind: kind, Source: source, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}
