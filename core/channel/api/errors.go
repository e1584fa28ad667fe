package api

import "errors"

var (
	ErrDispenserNil    = errors.New("api: dispenser is required")
	ErrMessagesNil     = errors.New("api: messages are required")
	ErrAddressRequired = errors.New("params error, address required")
	ErrAccountRequired = errors.New("params error, account required")
	ErrInvalidBody     = errors.New("params error, invalid JSON body")
)
