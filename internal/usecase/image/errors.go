package image

import "errors"

var (
	ErrInvalidVariant    = errors.New("invalid image variant")
	ErrNotReady          = errors.New("normalized image is not ready")
	ErrDatabaseError     = errors.New("database error")
	ErrMessageQueueError = errors.New("message queue error")
)
