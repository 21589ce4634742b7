package model

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrAlreadyRunning    = errors.New("timer already running")
	ErrSourceUnavailable = errors.New("ledger source unavailable")
)
