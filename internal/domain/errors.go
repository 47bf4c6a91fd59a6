package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOwner = errors.New("invalid note owner")
	ErrEmptyTitle   = errors.New("Title can't be empty")
	ErrNoteNotFound = errors.New("Invalid note")

	ErrUserNotFound    = errors.New("User not found")
	ErrEmptyUsername   = errors.New("Username cannot be empty")
	ErrEmptyEmail      = errors.New("Email cannot be empty")
	ErrEmptyPassword   = errors.New("Password cannot be empty")
	ErrSelfAdminChange = errors.New("Cannot edit one's own admin status")
	ErrSelfDelete      = errors.New("Cannot delete one's own account")
	ErrForbidden       = errors.New("Missing permissions")
	ErrBadCredentials  = errors.New("Could not verify")

	ErrInvalidQuery = errors.New("Invalid filter")
)

// UserError is a user-correctable account error that names the offending
// value, e.g. "Username bob is taken".
type UserError struct {
	Field  string
	Value  string
	Reason string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s %s is %s", e.Field, e.Value, e.Reason)
}

func UsernameTaken(username string) error {
	return &UserError{Field: "Username", Value: username, Reason: "taken"}
}

func UsernameInvalid(username string) error {
	return &UserError{Field: "Username", Value: username, Reason: "invalid"}
}

func EmailTaken(email string) error {
	return &UserError{Field: "Email", Value: email, Reason: "taken"}
}

func EmailInvalid(email string) error {
	return &UserError{Field: "Email", Value: email, Reason: "invalid"}
}

// IsUserCorrectable reports whether err is meant to be shown to the caller
// verbatim.
func IsUserCorrectable(err error) bool {
	var ue *UserError
	if errors.As(err, &ue) {
		return true
	}
	for _, target := range []error{
		ErrInvalidOwner, ErrEmptyTitle, ErrNoteNotFound, ErrUserNotFound,
		ErrEmptyUsername, ErrEmptyEmail, ErrEmptyPassword,
		ErrSelfAdminChange, ErrSelfDelete, ErrInvalidQuery,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
