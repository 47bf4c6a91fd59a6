package service

import (
	"errors"

	"notebook-server/internal/domain"
)

// OperationError is an unexpected failure together with the message the
// caller is shown instead of the underlying error.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// unexpected wraps err unless it is already meant for the caller.
func unexpected(message string, err error) error {
	if err == nil || domain.IsUserCorrectable(err) ||
		errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrBadCredentials) {
		return err
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Message: message, Err: err}
}
