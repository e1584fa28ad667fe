package discord

import "errors"

var (
	ErrSessionNil     = errors.New("discord: session is required")
	ErrHandlerNil     = errors.New("discord: command handler is required")
	ErrMessagesNil    = errors.New("discord: messages are required")
	ErrMissingToken   = errors.New("discord: bot token is required")
	ErrOpenSession    = errors.New("discord: failed to open session")
	ErrMissingRoute   = errors.New("discord: notification has no channel id")
	ErrSendFailed     = errors.New("discord: failed to send message")
	ErrChannelLookup  = errors.New("discord: failed to resolve channel")
	ErrAlreadyRunning = errors.New("discord: bot already running")
)
