// Package memory configures the Go soft memory limit for the converter and
// provides a Monitor that pauses full-library sweeps while heap usage is
// critical.
//
// ConfigureFromEnv derives GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO when
// GOMEMLIMIT itself is not set. EnsureMinimum raises an existing limit to the
// floor needed to decode large originals.
package memory
