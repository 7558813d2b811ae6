package captionapi

import (
	"fmt"
	"net/http"
)

// TransportFailureMessage is what users see when no response arrives.
const TransportFailureMessage = "Connection to the server failed"

// RejectionError is a non-2xx answer from the caption server.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("caption server returned status %d: %s", e.StatusCode, e.Message)
}

func newRejection(statusCode int, message string) *RejectionError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &RejectionError{StatusCode: statusCode, Message: message}
}

// TransportError means the request never produced a response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "failed to reach caption server: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PayloadError is a declared success whose body is not a caption pair.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid caption response: %s: %v", e.Reason, e.Err)
	}
	return "invalid caption response: " + e.Reason
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}
