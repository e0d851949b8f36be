package serviceclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUpstreamUnreachable = errors.New("upstream_unreachable")
	ErrUpstreamRejected    = errors.New("upstream_rejected")
	ErrNotFound            = errors.New("not_found")
	ErrUnknownService      = errors.New("unknown_service")
	ErrInvalidResponse     = errors.New("invalid_response")
)

// UnreachableError is a transport-level failure: DNS, connect, timeout.
type UnreachableError struct {
	Service string
	Err     error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *UnreachableError) Unwrap() []error {
	return []error{ErrUpstreamUnreachable, e.Err}
}

// RejectedError is a non-2xx response or a {success:false} envelope.
type RejectedError struct {
	Service string
	Status  int
	Body    []byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected request with status %d", e.Service, e.Status)
}

func (e *RejectedError) Unwrap() []error {
	if e.Status == http.StatusNotFound {
		return []error{ErrUpstreamRejected, ErrNotFound}
	}
	return []error{ErrUpstreamRejected}
}

type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrInvalidResponse, e.Err}
}
