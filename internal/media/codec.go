package media

import (
	"errors"
	"fmt"
	"strings"

	"media-converter/internal/logging"
)

// ErrNoEncoder is returned at startup when the target format can not be written.
var ErrNoEncoder = errors.New("no encoder for target format")

// NewCodec selects a codec by name. "vips" falls back to the native codec
// when libvips can not be started.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "vips":
		if err := InitVips(); err != nil {
			logging.Warn("libvips unavailable, using native codec: %v", err)
			return NewNativeCodec(), nil
		}
		return NewVipsCodec()
	case "native":
		return NewNativeCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected vips or native)", name)
	}
}

// CheckCapabilities verifies that codec can produce the target format and
// logs which source formats it can read.
func CheckCapabilities(codec Codec) error {
	if !codec.CanEncode() {
		return fmt.Errorf("%w: %s codec can not write %s", ErrNoEncoder, codec.Name(), Target)
	}

	var readable, missing []string
	for _, f := range []Format{FormatJPEG, FormatPNG, FormatWebP, FormatAVIF} {
		if codec.Supports(f) {
			readable = append(readable, string(f))
		} else {
			missing = append(missing, string(f))
		}
	}

	logging.Info("Codec %s: reads [%s], writes %s", codec.Name(), strings.Join(readable, ", "), Target)
	if len(missing) > 0 {
		logging.Warn("Codec %s can not decode: %s", codec.Name(), strings.Join(missing, ", "))
	}
	return nil
}
