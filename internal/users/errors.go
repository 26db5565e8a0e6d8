package users

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateUser      = errors.New("email or username already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a rejected registration field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
