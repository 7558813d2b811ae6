package workflow

import (
	"errors"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
)

// NoticeKind classifies a failure shown to the user.
type NoticeKind string

const (
	ServerRejection  NoticeKind = "server_rejection"
	TransportFailure NoticeKind = "transport_failure"
	PayloadError     NoticeKind = "payload_error"
)

// Notice is a blocking, user-visible failure message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

const payloadFailureMessage = "The server returned an incomplete caption"

// NoticeFor converts a caption request error into what the user sees.
// Rejections carry the server's message verbatim; anything that is not a
// rejection or a payload error is treated as a connectivity failure.
func NoticeFor(err error) Notice {
	var rejection *captionapi.RejectionError
	if errors.As(err, &rejection) {
		return Notice{Kind: ServerRejection, Message: rejection.Message}
	}

	var payload *captionapi.PayloadError
	if errors.As(err, &payload) {
		return Notice{Kind: PayloadError, Message: payloadFailureMessage}
	}

	return Notice{Kind: TransportFailure, Message: captionapi.TransportFailureMessage}
}
