package core

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrStorage      = errors.New("storage error")
	ErrSourceFormat = errors.New("unrecognized source format")
)
