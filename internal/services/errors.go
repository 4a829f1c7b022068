package services

import "errors"

// Run service errors
var (
	ErrUnknownSource = errors.New("unknown source")
	ErrSourceFailed  = errors.New("source could not be loaded")
	ErrRunNotFound   = errors.New("run not found")
)
