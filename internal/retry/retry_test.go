package retry

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	v, err := Do(3, func(attempt int) (int, error) {
		calls++
		if attempt < 2 {
			return 0, errors.New("busy")
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	_, err := Do(2, func(attempt int) (string, error) {
		calls++
		return "", fmt.Errorf("attempt %d", attempt)
	})
	if err == nil || err.Error() != "attempt 1" {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Run(3, func(int) error {
		calls++
		return &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}
	})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoClampsAttempts(t *testing.T) {
	calls := 0
	_ = Run(0, func(int) error { calls++; return errors.New("x") })
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
