package server

import "errors"

var (
	ErrMissingAddress       = errors.New("server: address is required")
	ErrServerAlreadyRunning = errors.New("server: already running")
	ErrServerNotRunning     = errors.New("server: not running")
	ErrLoadCertificate      = errors.New("server: failed to load TLS certificate")
)
