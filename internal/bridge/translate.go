package bridge

import (
	"net/http"

	"github.com/omtlabs/marketing-bridge/internal/marketing"
)

// ClientError is the client-visible translation of an internal failure:
// the message shown to the user and the HTTP status used when the failure
// happens before the first byte of the stream is sent.
type ClientError struct {
	Status  int
	Message string
}

// TranslateFailure maps a failure category to its client-visible signal.
func TranslateFailure(f *marketing.Failure) ClientError {
	switch f.Category {
	case marketing.FailureAuth:
		return ClientError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	case marketing.FailureTransport:
		return ClientError{Status: http.StatusBadGateway, Message: "upstream unreachable"}
	case marketing.FailureBackend:
		return ClientError{Status: http.StatusBadGateway, Message: "backend failure"}
	case marketing.FailureTimeout:
		return ClientError{Status: http.StatusGatewayTimeout, Message: "upstream timeout"}
	case marketing.FailureValidation:
		return ClientError{Status: http.StatusBadRequest, Message: "invalid query or backend response"}
	default:
		return ClientError{Status: http.StatusInternalServerError, Message: "internal error"}
	}
}

// ErrorPayload builds the error envelope payload. Status reflects the
// upstream status when one was observed, the translated status otherwise.
func ErrorPayload(f *marketing.Failure) map[string]interface{} {
	ce := TranslateFailure(f)

	status := f.UpstreamStatus
	if status == 0 {
		status = ce.Status
	}

	return map[string]interface{}{
		"category": string(f.Category),
		"detail":   f.Detail,
		"status":   status,
	}
}
