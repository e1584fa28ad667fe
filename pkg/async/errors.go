package async

import "errors"

var (
	ErrTimeout         = errors.New("future: timeout")
	ErrAlreadyResolved = errors.New("future: already resolved")
)
