package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record does not exist or has expired.
var ErrNotFound = errors.New("record not found")

// Kind is the closed set of failure categories surfaced to clients.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindExpired
	KindSignature
	KindUnauthorized
	KindDependency
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindExpired:
		return "ExpiredOrUnknownError"
	case KindSignature:
		return "SignatureInvalidError"
	case KindUnauthorized:
		return "UnauthorizedError"
	case KindDependency:
		return "DependencyError"
	case KindStorage:
		return "StorageError"
	default:
		return "UnknownError"
	}
}

// Error is a categorised failure carrying a client-facing reason.
type Error struct {
	Kind   Kind
	Reason string // message safe to show to the client
	Name   string // overrides the category tag when set
	Code   int    // optional numeric code, 0 when absent
	Err    error  // underlying cause, never shown to the client
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, and the same reason when the
// target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Tag is the category tag reported to clients.
func (e *Error) Tag() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Kind.String()
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrExpired      = &Error{Kind: KindExpired}
	ErrSignature    = &Error{Kind: KindSignature}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrDependency   = &Error{Kind: KindDependency}
	ErrStorage      = &Error{Kind: KindStorage}
)

// Client-facing reasons.
const (
	ReasonNoAddress         = "No ZelID is specified"
	ReasonInvalidAddress    = "ZelID is not valid"
	ReasonNoMessage         = "No message is specified"
	ReasonInvalidMessage    = "Signed message is not valid"
	ReasonNoSignature       = "No signature is specified"
	ReasonInvalidSignature  = "Invalid signature"
	ReasonNoLongerValid     = "Signed message is no longer valid. Please request a new one."
	ReasonUnauthorized      = "Unauthorized. Access denied."
	ReasonStorage           = "Internal storage failure. Please try again later."
	ReasonInvalidRequest    = "Invalid request body"
	ReasonAlreadyLoggedOut  = "Specified user was already logged out"
	ReasonNoCaller          = "No user ZelID specified"
	ReasonNoCallerSignature = "No user ZelID signature specified"
	ReasonDockerUnavailable = "Container runtime is not available"
	ReasonHardware          = "Node hardware requirements not met"
	ReasonDistressUnknown   = "Unable to check DOS state"
	ReasonHardwareFlagged   = "Minimum hardware required for FluxNode tier not met"
)

// Validation returns a validation failure with the given reason.
func Validation(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// Expired returns the failure used when a phrase is unknown or outside its window.
func Expired() *Error {
	return &Error{Kind: KindExpired, Reason: ReasonNoLongerValid}
}

// SignatureInvalid wraps a verification failure without revealing its cause.
func SignatureInvalid(cause error) *Error {
	return &Error{Kind: KindSignature, Reason: ReasonInvalidSignature, Err: cause}
}

// Unauthorized returns the uniform authorization failure.
func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Reason: ReasonUnauthorized}
}

// Dependency wraps a failed issuance precondition.
func Dependency(reason string, cause error) *Error {
	return &Error{Kind: KindDependency, Reason: reason, Err: cause}
}

// Storage wraps a store failure behind a generic reason.
func Storage(cause error) *Error {
	return &Error{Kind: KindStorage, Reason: ReasonStorage, Err: cause}
}

// AsError converts any error into an *Error, treating unknown errors as storage failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage(err)
}
