// Package outcome models best-effort sub-operations: each call yields a
// Result that is either consumed as a value or degraded to a fallback, so a
// secondary failure never fails the primary operation.
package outcome

import "fmt"

// Result is success-with-value or failure-with-reason.
type Result[T any] struct {
	Value T
	Err   error
}

// Try runs fn and captures its value or error. A panic inside fn is
// converted to an error.
func Try[T any](fn func() (T, error)) (r Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			r = Result[T]{Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

// Failed reports whether the Result carries an error.
func (r Result[T]) Failed() bool {
	return r.Err != nil
}

// Reason returns the error text, or "" on success.
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Degrade returns the value on success. On failure it reports the error to
// onErr (if non-nil) and returns def instead.
func (r Result[T]) Degrade(def T, onErr func(error)) T {
	if r.Err != nil {
		if onErr != nil {
			onErr(r.Err)
		}
		return def
	}
	return r.Value
}
