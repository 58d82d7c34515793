package core

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when caller input is rejected before any side effect happens.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// Identity provider rejection codes.
const (
	IdentityEmailExists        = "email-already-in-use"
	IdentityInvalidEmail       = "invalid-email"
	IdentityWeakPassword       = "weak-password"
	IdentityInvalidCredentials = "invalid-credentials"
	IdentityAccountDisabled    = "account-disabled"
	IdentityAccountNotFound    = "account-not-found"
	IdentityUnavailable        = "unavailable"
)

// IdentityProviderError is returned when the identity provider refuses or fails an account operation.
type IdentityProviderError struct {
	Code string
	Err  error
}

func NewIdentityProviderError(code string, err error) error {
	return &IdentityProviderError{Code: code, Err: err}
}

func (err IdentityProviderError) Error() string {
	if err.Err == nil {
		return "identity provider: " + err.Code
	}
	return fmt.Sprintf("identity provider: %s: %v", err.Code, err.Err)
}

func (err IdentityProviderError) Unwrap() error { return err.Err }

// PersistenceError is returned when a document write fails.
// UID names the identity account the write belonged to, if any.
// Compensated reports whether that account was removed again after the failure.
type PersistenceError struct {
	Err         error
	UID         string
	Compensated bool
}

func (err PersistenceError) Error() string {
	msg := "persistence failed"
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	if err.UID != "" && !err.Compensated {
		msg += " (orphaned account " + err.UID + ")"
	}
	return msg
}

func (err PersistenceError) Unwrap() error { return err.Err }

// Operation is the kind of document access that was attempted.
type Operation string

const (
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpWrite  Operation = "write"
)

func (op Operation) Valid() bool {
	switch op {
	case OpGet, OpList, OpCreate, OpUpdate, OpDelete, OpWrite:
		return true
	}
	return false
}

// PermissionError describes an access denied by the document access policy.
type PermissionError struct {
	Path                string                 `json:"path"`
	Operation           Operation              `json:"operation"`
	RequestResourceData map[string]interface{} `json:"requestResourceData,omitempty"`
	ActorUID            string                 `json:"actorUid,omitempty"`
	At                  time.Time              `json:"at"`
}

func (err PermissionError) Error() string {
	return fmt.Sprintf("missing or insufficient permissions: %s %s", err.Operation, err.Path)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
