package ffa

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInputShape marks malformed request data: mismatched series lengths or
	// split years outside the data's range. Rejected before segmentation.
	ErrInputShape = errors.New("invalid input")

	// ErrConfig marks an unusable option value, such as an unknown method name.
	// Rejected before any procedure is invoked.
	ErrConfig = errors.New("invalid configuration")

	// ErrTimeout marks a procedure or rendering call that exceeded its bound
	ErrTimeout = errors.New("procedure timed out")
)

// ProcedureError wraps a failure reported by a statistical procedure or the
// plot renderer. It is attached to the failing period and never retried.
type ProcedureError struct {
	Procedure string
	Err       error
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("procedure %s failed: %v", e.Procedure, e.Err)
}

func (e *ProcedureError) Unwrap() error {
	return e.Err
}

// NewProcedureError wraps err unless it is already a procedure error
func NewProcedureError(procedure string, err error) error {
	var pe *ProcedureError
	if errors.As(err, &pe) {
		return err
	}
	return &ProcedureError{Procedure: procedure, Err: err}
}

// HTTPStatus maps an error kind to the status code the REST layer returns
func HTTPStatus(err error) int {
	var pe *ProcedureError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInputShape):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
