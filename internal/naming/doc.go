// Package naming allocates sequential, collision-free file names of the form
// <prefix><NNN>img.<ext>.
//
// The counter lives behind CounterStore, whose Advance is an atomic
// fetch-and-advance: it returns the value to use and persists the next one,
// wrapping from 999 back to 1. Stores exist for process memory, SQLite
// (package database) and Redis.
//
// An existing file with the generated name gets a "-xyz" suffix of three
// distinct random lowercase letters. The existence check is only a
// heuristic; callers that need a guarantee create the destination
// exclusively and ask Suffixed for another candidate when that fails.
package naming
