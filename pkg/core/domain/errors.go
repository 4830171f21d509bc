package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("short code already exists")
	ErrNotFound    = errors.New("link not found")
	ErrForbidden   = errors.New("not authorized for this link")
	ErrExpired     = errors.New("link has expired")
	ErrDeactivated = errors.New("link has been deactivated")
)

// ErrCodeSpaceExhausted is returned when every generated code collided.
// It matches ErrConflict under errors.Is.
var ErrCodeSpaceExhausted = fmt.Errorf("%w: generated codes exhausted", ErrConflict)
