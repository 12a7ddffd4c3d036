// Package guard provides a mutex that remembers a panic inside its
// critical section.
//
// A value protected by a Mutex may be half-updated when a critical
// section panics. Once that happens the Mutex is poisoned and refuses
// every later access with ErrPoisoned, so callers fail loudly instead of
// reading torn state.
package guard

import (
	"errors"
	"sync"
)

// ErrPoisoned is returned by With once a previous critical section panicked.
var ErrPoisoned = errors.New("guard: lock poisoned by an earlier panic")

// Mutex guards a value of type T.
//
// The zero value holds the zero T and is ready to use.
type Mutex[T any] struct {
	mu       sync.Mutex
	poisoned bool
	value    T
}

// New returns a Mutex holding v.
func New[T any](v T) *Mutex[T] {
	return &Mutex[T]{value: v}
}

// With runs fn with exclusive access to the guarded value.
//
// If fn panics the Mutex is poisoned, unlocked, and the panic continues
// up the caller's stack.
func (m *Mutex[T]) With(fn func(*T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poisoned {
		return ErrPoisoned
	}

	completed := false
	defer func() {
		if !completed {
			m.poisoned = true
		}
	}()

	err := fn(&m.value)
	completed = true
	return err
}

// Poisoned reports whether a critical section has panicked.
func (m *Mutex[T]) Poisoned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poisoned
}
