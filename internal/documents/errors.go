package documents

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("document not found")
	ErrStorage      = errors.New("storage failure")
	ErrPersistence  = errors.New("persistence failure")
)
