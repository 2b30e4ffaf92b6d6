package dispatch

import (
	"errors"
	"net/http"

	"github.com/AgentShepherd/dataworks/internal/fileutil"
	"github.com/AgentShepherd/dataworks/internal/guard"
)

// Status is the caller-visible category of a deny.
type Status string

const (
	StatusAccessDenied        Status = "access_denied"
	StatusOperationProhibited Status = "operation_prohibited"
	StatusPayloadTooLarge     Status = "payload_too_large"
)

// StatusFor maps every deny reason to a caller-visible status. Unknown
// reasons map to StatusAccessDenied.
func StatusFor(r guard.Reason) Status {
	switch r {
	case guard.ReasonRestrictedOperation:
		return StatusOperationProhibited
	case guard.ReasonFileTooLarge:
		return StatusPayloadTooLarge
	default:
		return StatusAccessDenied
	}
}

// HTTPCode returns the HTTP status code for s.
func (s Status) HTTPCode() int {
	switch s {
	case StatusOperationProhibited:
		return http.StatusBadRequest
	case StatusPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusForbidden
	}
}

// HTTPStatus maps a dispatcher error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var de *guard.DenyError
	if errors.As(err, &de) {
		return StatusFor(de.Reason).HTTPCode()
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnsupported:
		return http.StatusNotImplemented
	case KindNotFound:
		return http.StatusNotFound
	}
	if errors.Is(err, fileutil.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text safe to send to an API caller. Deny details
// and validation messages are sandbox-relative; execution failures are
// reduced to a fixed string.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *guard.DenyError
	if errors.As(err, &de) {
		return de.Error()
	}
	var te *TaskError
	if errors.As(err, &te) && te.Kind != KindExecution {
		return te.Error()
	}
	if errors.Is(err, fileutil.ErrTooLarge) {
		return "output exceeds the maximum file size"
	}
	return "task execution failed"
}
