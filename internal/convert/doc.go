// Package convert turns uploaded and stored images into WebP files with
// generated names.
//
// A Pipeline is built once from Settings, a media.Codec and a
// naming.Allocator and is then shared by the upload watcher, the batch
// driver, the HTTP handlers and the CLI. Convert never panics on bad input
// and never removes a source before its replacement is fully written.
// ProcessUpload is the upload hook: it converts images, renames MP4 videos
// and passes everything else through.
package convert
