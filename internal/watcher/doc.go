// Package watcher picks up files dropped into the upload directory,
// registers them in the media library and runs them through the upload
// hook once they have stopped changing.
package watcher
