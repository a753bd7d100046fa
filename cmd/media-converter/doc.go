// Command media-converter runs conversions against the media library from
// the command line, using the same configuration as the server.
//
// Usage:
//
//	media-converter reconvert
//	media-converter batch [--offset N] [--limit N] [--all]
//	media-converter convert <path> [--mime TYPE]
//	media-converter import [dir]
//	media-converter log show|clear
//	media-converter counter show|set N
//
// The server and the CLI share the library database, so the name counter
// carries across both. Run the CLI against a stopped server or keep sweeps
// short: SQLite serializes writers.
package main
