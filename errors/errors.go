package errors

import "fmt"

var (
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrNotFound           = fmt.Errorf("room not found")
	ErrBusy               = fmt.Errorf("operation already in flight for room")
	ErrPersistenceFailure = fmt.Errorf("persistence failure")
	ErrReplyFailure       = fmt.Errorf("reply generation failed")
	ErrHistoryFailure     = fmt.Errorf("history fetch failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
