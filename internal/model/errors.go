package model

import "errors"

// Sentinel errors shared by the scheduler, the HTTP layer and the transport
// client. Callers wrap them with context and match with errors.Is.
var (
	ErrNoWorkersAvailable = errors.New("no workers available")
	ErrDispatchFailure    = errors.New("dispatch failure")
	ErrUnknownTask        = errors.New("unknown task")
	ErrDuplicateSlot      = errors.New("duplicate slot")
	ErrInvalidSlot        = errors.New("invalid slot")
	ErrInvalidTask        = errors.New("invalid task")
)
