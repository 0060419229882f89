package chat

import "errors"

type Kind string

const (
	KindAuth          Kind = "auth"
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindOracle        Kind = "oracle"
)

// Error is returned by Router operations. Authorization and validation
// errors are reported to the calling connection only and leave state
// untouched.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrMissingCredential = &Error{Kind: KindAuth, Message: "missing"}
	ErrInvalidCredential = &Error{Kind: KindAuth, Message: "invalid"}
)

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func unauthorized(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func invalid(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}
