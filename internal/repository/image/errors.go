package image

import "errors"

var (
	ErrImageNotFound          = errors.New("image not found")
	ErrProcessedImageNotFound = errors.New("processed image not found")
	ErrFileNotFound           = errors.New("file not found")
	ErrStorageError           = errors.New("storage error")
)
