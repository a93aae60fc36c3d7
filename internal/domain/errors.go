package domain

import (
	"errors"
	"fmt"
)

// Sentinels for classifying failures with errors.Is.
var (
	ErrTransport     = errors.New("modflow: transport failure")
	ErrDecode        = errors.New("modflow: decode error")
	ErrInvalidConfig = errors.New("modflow: invalid configuration")
	ErrPersistence   = errors.New("modflow: persistence failure")
)

// TransportError reports a failed exchange with the controller: refused
// connection, timeout, exception response or a short/garbled frame.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DecodeError reports a snapshot whose geometry does not match the configured
// register count. Nothing is decoded when it is returned.
type DecodeError struct {
	Got    int
	Want   int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s (got %d registers, want %d)", e.Reason, e.Got, e.Want)
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ConfigError is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// PersistenceError wraps a storage failure for a single operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Configf builds a ConfigError with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
