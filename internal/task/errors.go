package task

import "errors"

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrAwaitTimeout   = errors.New("await timeout")
	ErrManagerClosed  = errors.New("task manager closed")
	ErrPartialFailure = errors.New("task reported partial failure")
)
