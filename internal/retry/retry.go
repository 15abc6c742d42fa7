// Package retry runs filesystem operations a bounded number of times.
//
// Attempts are immediate; there is no backoff. Errors that can never succeed
// on a second try (missing paths, permission denials) end the loop early.
package retry

import (
	"errors"
	"io/fs"
)

// Do calls op up to maxAttempts times and returns the first success or the
// last error. maxAttempts below 1 is treated as 1.
func Do[T any](maxAttempts int, op func(attempt int) (T, error)) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var (
		zero    T
		lastErr error
	)
	for attempt := range maxAttempts {
		v, err := op(attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !Transient(err) {
			break
		}
	}
	return zero, lastErr
}

// Run is Do for operations without a result.
func Run(maxAttempts int, op func(attempt int) error) error {
	_, err := Do(maxAttempts, func(attempt int) (struct{}, error) {
		return struct{}{}, op(attempt)
	})
	return err
}

// Transient reports whether err is worth another attempt.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, fs.ErrInvalid):
		return false
	}
	return true
}
