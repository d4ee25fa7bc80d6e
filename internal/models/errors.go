package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrEmptyDocument        = errors.New("document has no extractable text")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrEmptyIndex           = errors.New("index has not been built")
	ErrInvalidQuery         = errors.New("query is empty")
	ErrMalformedResponse    = errors.New("malformed completion response")
	ErrIndexBuildInProgress = errors.New("index build in progress")
	ErrUpstreamTimeout      = errors.New("upstream timeout")
)

// MalformedResponseError reports which required labels were missing from a
// completion response.
type MalformedResponseError struct {
	Missing []string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrMalformedResponse, strings.Join(e.Missing, ", "))
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// UpstreamTimeoutError wraps a deadline hit while calling the embedding or
// completion service.
type UpstreamTimeoutError struct {
	Op  string
	Err error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrUpstreamTimeout, e.Err)
}

func (e *UpstreamTimeoutError) Is(target error) bool {
	return target == ErrUpstreamTimeout
}

func (e *UpstreamTimeoutError) Unwrap() error { return e.Err }

// UpstreamError converts err into an *UpstreamTimeoutError when it was caused
// by a deadline, and wraps it with op otherwise. A nil err stays nil.
func UpstreamError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstreamTimeout) {
		return err
	}
	if IsTimeout(err) {
		return &UpstreamTimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTimeout reports whether err came from a context deadline or a network
// timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
