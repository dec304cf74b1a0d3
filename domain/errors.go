package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport layer. The core never encodes
// HTTP semantics; callers map kinds to protocol responses.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindConflict
	KindNotFound
	KindValidation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is a typed domain failure. Two Errors match under errors.Is when
// they share the same Kind and Message, so sentinel values below can be
// compared directly.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithCause returns a copy of e carrying the underlying error. The external
// message is unchanged so wrapped sentinels still match with errors.Is.
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, cause: cause}
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind from any error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// Sentinel failures. Credential-related denials deliberately share one
// generic message so that missing users, inactive accounts, and wrong
// passwords are indistinguishable to a caller probing for enumeration.
var (
	ErrInvalidCredentials  = NewError(KindUnauthorized, "invalid email or password")
	ErrInvalidAccessToken  = NewError(KindUnauthorized, "invalid or expired access token")
	ErrInvalidRefreshToken = NewError(KindUnauthorized, "invalid refresh token")
	ErrInvalidCode         = NewError(KindUnauthorized, "invalid or expired verification code")

	ErrAccountInactive = NewError(KindForbidden, "account is inactive")
	ErrPolicyDenied    = NewError(KindForbidden, "access denied")
	ErrTenantMismatch  = NewError(KindForbidden, "tenant mismatch")

	ErrEmailTaken      = NewError(KindConflict, "email already registered")
	ErrAlreadyVerified = NewError(KindConflict, "email already verified")
	ErrDuplicateTenant = NewError(KindConflict, "tenant name or domain already in use")
	ErrDuplicateRole   = NewError(KindConflict, "role already exists")
	ErrCyclicRole      = NewError(KindConflict, "role inheritance would create a cycle")

	ErrUserNotFound   = NewError(KindNotFound, "user not found")
	ErrTenantNotFound = NewError(KindNotFound, "tenant not found")
	ErrRoleNotFound   = NewError(KindNotFound, "role not found")

	ErrRateLimited = NewError(KindForbidden, "too many requests")
	ErrTimeout     = NewError(KindInternal, "operation timed out, retry")
)
