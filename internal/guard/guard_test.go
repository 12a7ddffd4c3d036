package guard

import (
	"errors"
	"sync"
	"testing"
)

func TestMutex_With(t *testing.T) {
	m := New(map[string]int{})

	err := m.With(func(v *map[string]int) error {
		(*v)["a"] = 1
		return nil
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	var got int
	_ = m.With(func(v *map[string]int) error {
		got = (*v)["a"]
		return nil
	})
	if got != 1 {
		t.Errorf("value = %d, want 1", got)
	}
}

func TestMutex_WithReturnsCallbackError(t *testing.T) {
	var m Mutex[int]
	want := errors.New("boom")

	if err := m.With(func(*int) error { return want }); !errors.Is(err, want) {
		t.Errorf("With() error = %v, want %v", err, want)
	}
	if m.Poisoned() {
		t.Error("returned error must not poison the mutex")
	}
}

func TestMutex_PanicPoisons(t *testing.T) {
	var m Mutex[int]

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = m.With(func(v *int) error {
			*v = 42
			panic("mid-update")
		})
	}()

	if !m.Poisoned() {
		t.Fatal("Poisoned() = false after panic")
	}

	called := false
	err := m.With(func(*int) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrPoisoned) {
		t.Errorf("With() error = %v, want ErrPoisoned", err)
	}
	if called {
		t.Error("critical section ran on a poisoned mutex")
	}
}

func TestMutex_Concurrent(t *testing.T) {
	var m Mutex[int]
	var wg sync.WaitGroup

	for n := 0; n < 100; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With(func(v *int) error {
				*v++
				return nil
			})
		}()
	}
	wg.Wait()

	var got int
	_ = m.With(func(v *int) error {
		got = *v
		return nil
	})
	if got != 100 {
		t.Errorf("counter = %d, want 100", got)
	}
}
