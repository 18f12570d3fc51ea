package normalizer

import "errors"

var (
	ErrNotAnImage = errors.New("not an image")
	ErrDecode     = errors.New("failed to decode image")
	ErrEncode     = errors.New("failed to encode image")

	ErrTooManyPixels  = errors.New("image exceeds pixel limit")
	ErrInvalidOptions = errors.New("invalid normalize options")
)
