package apierror

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrForbidden      ErrorCode = "FORBIDDEN"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// State-machine guard violations. These are expected outcomes of racing
	// callers, not faults; the boundary layer renders a specific message for
	// each so the UI can react ("someone else already bought this").
	ErrAlreadySold     ErrorCode = "ALREADY_SOLD"
	ErrReservedByOther ErrorCode = "RESERVED_BY_OTHER"
	ErrNotPending      ErrorCode = "NOT_PENDING"
	ErrSlotMismatch    ErrorCode = "SLOT_MISMATCH"
	ErrAlreadyClosed   ErrorCode = "ALREADY_CLOSED"
	ErrLeaseExpired    ErrorCode = "LEASE_EXPIRED"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsGuardViolation reports whether the error is a state-machine guard code.
// Guard violations are never retried internally; retry policy belongs to the
// caller.
func IsGuardViolation(err error) bool {
	apiErr, ok := err.(APIError)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case ErrAlreadySold, ErrReservedByOther, ErrNotPending, ErrSlotMismatch, ErrAlreadyClosed, ErrLeaseExpired, ErrConflict:
		return true
	default:
		return false
	}
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := err.(APIError); ok {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrForbidden:
			return http.StatusForbidden
		case ErrConflict, ErrAlreadySold, ErrReservedByOther, ErrNotPending, ErrSlotMismatch, ErrAlreadyClosed, ErrLeaseExpired:
			return http.StatusConflict
		case ErrBadRequest, ErrInvalidInput:
			return http.StatusBadRequest
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
