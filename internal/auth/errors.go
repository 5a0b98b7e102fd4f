package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: resource conflict")
	ErrInvalidInput       = errors.New("auth: invalid input")
	ErrInvalidCredentials = errors.New("auth: invalid credentials or user inactive")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrPermissionDenied   = errors.New("auth: permission denied")
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
