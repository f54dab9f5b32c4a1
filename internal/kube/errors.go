package kube

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

var (
	// ErrUpstreamUnavailable means the API server could not be reached or did
	// not answer before the upstream timeout.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedRecord means the API server returned a record missing a
	// field every summary needs (name, creation timestamp).
	ErrMalformedRecord = errors.New("malformed upstream record")
)

// UpstreamRejectedError carries a non-2xx answer from the API server.
type UpstreamRejectedError struct {
	Code    int32
	Reason  string
	Message string
}

func (e *UpstreamRejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("upstream rejected request: %d %s: %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("upstream rejected request: %d: %s", e.Code, e.Message)
}

// InvalidRequestError is returned before any upstream call is made.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &InvalidRequestError{Field: field, Reason: reason}
}

// IsInvalidRequest reports whether err (or anything it wraps) is an
// InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var target *InvalidRequestError
	return errors.As(err, &target)
}

// classify maps a client-go error onto the upstream taxonomy. An API status
// becomes UpstreamRejectedError; anything else that stopped the round trip
// (dial failure, TLS, deadline, cancellation) is ErrUpstreamUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var status apierrors.APIStatus
	if errors.As(err, &status) && !errors.Is(err, context.DeadlineExceeded) {
		st := status.Status()
		return fmt.Errorf("%s: %w", op, &UpstreamRejectedError{
			Code:    st.Code,
			Reason:  string(st.Reason),
			Message: st.Message,
		})
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
}
