package client

import (
	"fmt"
	"strings"
)

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError means a response arrived but did not have the expected shape.
// Status is set when the failure was a non-2xx read.
type ProtocolError struct {
	Op     string
	Status int
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: protocol error (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: protocol error: %v", e.Op, e.Err)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError is raised before any request is made, for input that cannot
// become a well-formed order.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }

// SubmissionRejected carries the server's non-2xx answer to a write.
type SubmissionRejected struct {
	Op     string
	Status int
	Body   string
}

func (e *SubmissionRejected) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: rejected with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: rejected with status %d: %s", e.Op, e.Status, body)
}
