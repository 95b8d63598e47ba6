package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies job failures for the UI.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindDependencyMissing ErrorKind = "dependency_missing"
	KindIO                ErrorKind = "io"
	KindCodec             ErrorKind = "codec"
	KindConcurrency       ErrorKind = "concurrency"
)

// Error is a classified, stage-aware job error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error formats failures for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Failure converts the error into its UI payload.
func (e *Error) Failure() *Failure {
	if e == nil {
		return nil
	}
	return &Failure{Kind: e.Kind, Message: e.Error()}
}

// NewError builds a classified error.
func NewError(kind ErrorKind, stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

// ConfigurationError reports an invalid variant, bitrate, or job parameter.
func ConfigurationError(message string, err error) *Error {
	return NewError(KindConfiguration, "validation", message, err)
}

// DependencyMissingError reports a required external tool that is absent.
func DependencyMissingError(message string, err error) *Error {
	return NewError(KindDependencyMissing, "preflight", message, err)
}

// IOError reports unreadable sources or unwritable destinations.
func IOError(stage, message string, err error) *Error {
	return NewError(KindIO, stage, message, err)
}

// CodecError reports engine initialization or encode failures.
func CodecError(stage, message string, err error) *Error {
	return NewError(KindCodec, stage, message, err)
}

// ConcurrencyError reports a job requested while another is active.
func ConcurrencyError(err error) *Error {
	return NewError(KindConcurrency, "", "only one encoding job can run at a time", err)
}

// AsError extracts the classified error from err, if any.
func AsError(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// KindOf returns the classification of err, or "" when unclassified.
func KindOf(err error) ErrorKind {
	if classified, ok := AsError(err); ok {
		return classified.Kind
	}
	return ""
}
