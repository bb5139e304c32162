package domain

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownMediaKind    = errors.New("unknown media kind")
	ErrPreferencesNotFound = errors.New("preferences not found")
)
