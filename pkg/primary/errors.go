package primary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
)

// Common errors returned by the store.
var (
	// ErrNotReady is returned when a command is issued while the connection is not ready.
	ErrNotReady = errors.New("primary store not ready")

	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("primary store closed")
)

// ErrorClass represents how a failure affects the connection.
type ErrorClass string

const (
	// ErrorClassNone means no error.
	ErrorClassNone ErrorClass = ""

	// ErrorClassTransient covers network failures, timeouts and replicas that
	// cannot serve writes yet. The store reconnects with back-off.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassFatal covers authentication and permission failures and a
	// closed client. Reconnecting would not help, so the store gives up.
	ErrorClassFatal ErrorClass = "fatal"

	// ErrorClassCommand covers Redis reply errors and caller cancellation.
	// The connection itself is fine.
	ErrorClassCommand ErrorClass = "command"
)

// Error is a failed store operation with its classification.
type Error struct {
	Op    string
	Class ErrorClass
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("primary %s (%s): %v", e.Op, e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Reply prefixes that mean the server is reachable but temporarily unable to serve.
var transientReplies = []string{"READONLY", "LOADING", "MASTERDOWN", "CLUSTERDOWN", "TRYAGAIN"}

// Reply prefixes that retrying will never fix.
var fatalReplies = []string{"NOAUTH", "WRONGPASS", "NOPERM", "ERR invalid password", "ERR AUTH"}

// Classify categorizes an error returned by a Redis command.
func Classify(err error) ErrorClass {
	if err == nil || errors.Is(err, redis.Nil) {
		return ErrorClassNone
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Class
	}

	if errors.Is(err, redis.ErrClosed) || errors.Is(err, ErrClosed) {
		return ErrorClassFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassCommand
	}

	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		msg := replyErr.Error()
		for _, prefix := range fatalReplies {
			if strings.HasPrefix(msg, prefix) {
				return ErrorClassFatal
			}
		}
		for _, prefix := range transientReplies {
			if strings.HasPrefix(msg, prefix) {
				return ErrorClassTransient
			}
		}
		return ErrorClassCommand
	}

	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, net.ErrClosed),
		errors.As(err, &netErr),
		strings.Contains(err.Error(), "connection pool timeout"):
		return ErrorClassTransient
	}

	return ErrorClassCommand
}

// shouldReconnect reports whether a failure of this class warrants a reconnect attempt.
func shouldReconnect(class ErrorClass) bool {
	return class == ErrorClassTransient
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Class: Classify(err), Err: err}
}
