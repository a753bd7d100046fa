// Package batch replays the conversion pipeline over the stored media
// library.
//
// RunPage handles one page and is meant to be called repeatedly by a
// polling client or CLI loop with the offset it returned. SweepAll walks the
// whole library in a single call and is used by the scheduler and the
// reconvert command. Per-item failures, panics included, are counted and
// never abort a run.
package batch
