package errors

import (
	"errors"
	"fmt"
)

// UserError represents an error that should be shown to the user with
// helpful context.
type UserError struct {
	Message    string
	Details    string
	Suggestion string
	Err        error
}

func (e UserError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Details != "" {
		msg += "\n  Details: " + e.Details
	}
	if e.Suggestion != "" {
		msg += "\n  💡 Try: " + e.Suggestion
	}
	return msg
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration problem with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// DefinitionError reports a secret definition file that is missing
// required metadata or has fields of the wrong shape. The secret it
// describes fails; other secrets proceed.
type DefinitionError struct {
	Path    string
	Message string
}

func (e DefinitionError) Error() string {
	return fmt.Sprintf("malformed definition %s: %s", e.Path, e.Message)
}

// DecryptError reports that the configured key could not decrypt a
// definition payload. The file is left in its original encrypted state.
type DecryptError struct {
	Path string
	Err  error
}

func (e DecryptError) Error() string {
	return fmt.Sprintf("cannot decrypt %s: %v", e.Path, e.Err)
}

func (e DecryptError) Unwrap() error {
	return e.Err
}

// RemoteError wraps a failed remote secret service call. Whether it is
// fatal for the secret depends on the operation: create and addVersion
// failures abort the secret's remaining plan, everything else is
// best-effort.
type RemoteError struct {
	Secret string
	Op     string
	Err    error
}

func (e RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed for secret %s: %v", e.Op, e.Secret, e.Err)
}

func (e RemoteError) Unwrap() error {
	return e.Err
}

// IsDefinitionError reports whether err is (or wraps) a DefinitionError.
func IsDefinitionError(err error) bool {
	var de DefinitionError
	return errors.As(err, &de)
}

// IsDecryptError reports whether err is (or wraps) a DecryptError.
func IsDecryptError(err error) bool {
	var de DecryptError
	return errors.As(err, &de)
}
