package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/segmentio/kafka-go"
)

var (
	ErrProducerClosed = errors.New("kafka producer is closed")
	ErrConsumerClosed = errors.New("kafka consumer is closed")
	ErrEmptyKey       = errors.New("message key cannot be empty")
	ErrEmptyValue     = errors.New("message value cannot be empty")
)

// ErrorType decides whether the consumer retries a failed message in place
// or dead-letters it straight away.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeTransient
	ErrorTypePermanent
)

// HandlerError is returned by message handlers that know how their failure
// should be treated.
type HandlerError struct {
	Type   ErrorType
	Reason string
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// NewTransientError marks a failure worth retrying, such as a store outage.
func NewTransientError(reason string, err error) *HandlerError {
	return &HandlerError{Type: ErrorTypeTransient, Reason: reason, Err: err}
}

// NewPermanentError marks a message that will never succeed, such as a
// payload that cannot be decoded.
func NewPermanentError(reason string, err error) *HandlerError {
	return &HandlerError{Type: ErrorTypePermanent, Reason: reason, Err: err}
}

var networkFaults = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
}

// ClassifyError trusts an explicit HandlerError first, then broker and
// network signals. Anything unrecognised is permanent so it cannot loop.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Type
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransient
	}

	var brokerErr kafka.Error
	if errors.As(err, &brokerErr) && brokerErr.Temporary() {
		return ErrorTypeTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeTransient
	}

	msg := strings.ToLower(err.Error())
	for _, fault := range networkFaults {
		if strings.Contains(msg, fault) {
			return ErrorTypeTransient
		}
	}
	return ErrorTypePermanent
}

// ShouldRetry reports whether a handler failure gets another attempt.
func ShouldRetry(err error, retries, maxRetries int) bool {
	return err != nil && retries < maxRetries && ClassifyError(err) == ErrorTypeTransient
}
