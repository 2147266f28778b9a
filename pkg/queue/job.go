package queue

import (
	"context"
	"errors"
)

// Job defines a queue job handler.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Type returns the type of message that the job handles.
	Type() string

	// Handle processes the job with the given payload. Errors are retried up to the
	// queue's RetryLimit unless wrapped with Permanent.
	Handle(ctx context.Context, payload interface{}) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The message goes straight to the dead letter queue.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type ctxKey int

const (
	attemptKey ctxKey = iota
	messageIDKey
)

func withMessage(ctx context.Context, msg Message) context.Context {
	ctx = context.WithValue(ctx, attemptKey, msg.Attempts+1)
	return context.WithValue(ctx, messageIDKey, msg.ID)
}

// Attempt returns the 1-based attempt number of the message being handled.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey).(int); ok {
		return n
	}
	return 1
}

// MessageID returns the id of the message being handled.
func MessageID(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey).(string)
	return id
}
