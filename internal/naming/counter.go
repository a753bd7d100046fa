package naming

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	// MinCounter is the first value handed out and the value after a wrap.
	MinCounter = 1
	// MaxCounter is the last value before the counter wraps.
	MaxCounter = 999
)

var (
	// ErrCounterPersist reports that the counter could not be advanced in
	// its store. Allocation continues with a best-effort value.
	ErrCounterPersist = errors.New("counter persist failed")

	// ErrCounterRange reports an attempt to store a value outside [1, 999].
	ErrCounterRange = errors.New("counter value out of range")
)

// CounterStore persists the shared name counter.
type CounterStore interface {
	// Advance returns the value to use for the next name and atomically
	// stores its successor.
	Advance(ctx context.Context) (int, error)
	// Current returns the value the next Advance would hand out.
	Current(ctx context.Context) (int, error)
	// Set replaces the stored value.
	Set(ctx context.Context, n int) error
}

// Normalize maps stored values outside the valid range to MinCounter.
func Normalize(v int) int {
	if v < MinCounter || v > MaxCounter {
		return MinCounter
	}
	return v
}

// Next returns the successor of v, wrapping after MaxCounter.
func Next(v int) int {
	if v >= MaxCounter {
		return MinCounter
	}
	return v + 1
}

// ValidateCounter checks a value before it is stored.
func ValidateCounter(n int) error {
	if n < MinCounter || n > MaxCounter {
		return fmt.Errorf("%w: %d", ErrCounterRange, n)
	}
	return nil
}

// MemoryCounter is a process-local CounterStore.
type MemoryCounter struct {
	mu    sync.Mutex
	value int
}

// NewMemoryCounter returns a counter starting at start (normalized).
func NewMemoryCounter(start int) *MemoryCounter {
	return &MemoryCounter{value: Normalize(start)}
}

// Advance implements CounterStore.
func (m *MemoryCounter) Advance(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := Normalize(m.value)
	m.value = Next(v)
	return v, nil
}

// Current implements CounterStore.
func (m *MemoryCounter) Current(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Normalize(m.value), nil
}

// Set implements CounterStore.
func (m *MemoryCounter) Set(_ context.Context, n int) error {
	if err := ValidateCounter(n); err != nil {
		return err
	}
	m.mu.Lock()
	m.value = n
	m.mu.Unlock()
	return nil
}
