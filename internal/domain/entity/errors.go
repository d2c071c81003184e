package entity

import "errors"

var (
	ErrNotFound          = errors.New("transcription not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
