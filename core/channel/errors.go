package channel

import "errors"

var (
	ErrDispenserNil = errors.New("channel: dispenser is required")
	ErrMessagesNil  = errors.New("channel: messages are required")
	ErrEmptyKind    = errors.New("channel: surface kind is required")
)
