// Package media decodes source images, bounds their dimensions and encodes
// them to WebP.
//
// Two codecs implement Codec:
//   - VipsCodec uses libvips and is the default. It reads JPEG, PNG, WebP and,
//     when libvips was built with it, AVIF.
//   - NativeCodec decodes with the Go image packages (no AVIF) and encodes
//     through libwebp.
//
// A Raster belongs to whoever decoded or scaled it and must be released
// exactly once. ResizeIfNeeded releases the original only after a scaled
// copy exists.
//
// Encode creates its destination exclusively and reports
// ErrDestinationExists instead of overwriting.
package media
