package model

import "errors"

var (
	ErrNotFound         = errors.New("note not found")
	ErrStoreUnavailable = errors.New("note store unavailable")
	ErrInvalidNote      = errors.New("invalid note")
	ErrAlreadyPersisted = errors.New("note already persisted")
	ErrEmptyQuery       = errors.New("empty search query")
)
