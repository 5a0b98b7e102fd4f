package directory

import "errors"

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: resource conflict")
	ErrInvalidInput = errors.New("directory: invalid input")
)
