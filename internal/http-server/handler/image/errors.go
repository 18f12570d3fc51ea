package image

import "errors"

var (
	ErrFileRequired  = errors.New("file is required")
	ErrFileTooLarge  = errors.New("file too large")
	ErrInvalidParams = errors.New("invalid parameters")
)
