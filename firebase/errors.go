package firebase

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of verification failure categories.
type ErrorKind string

const (
	// KindMissingToken means no credential was supplied at all.
	KindMissingToken ErrorKind = "missing_token"
	// KindInvalidToken means the credential lacked the bearer scheme or was
	// otherwise structurally unusable before verification started.
	KindInvalidToken ErrorKind = "invalid_token"
	// KindNoValidKey means the token was well formed but no candidate public
	// key produced a fully valid signature and claim set.
	KindNoValidKey ErrorKind = "no_valid_key"
	// KindKeySourceUnavailable means the public key endpoint could not be
	// fetched or decoded; nothing was verified.
	KindKeySourceUnavailable ErrorKind = "key_source_unavailable"
)

var errorMessages = map[ErrorKind]string{
	KindMissingToken:         "Missing authorization token",
	KindInvalidToken:         "Invalid token",
	KindNoValidKey:           "No valid public key found",
	KindKeySourceUnavailable: "Failed to fetch public keys",
}

// Error wraps verification failures with a stable kind and message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Kind)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) error {
	msg, ok := errorMessages[kind]
	if !ok {
		msg = string(kind)
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the error kind from err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsCredentialError reports whether err was caused by the presented
// credential rather than by infrastructure.
func IsCredentialError(err error) bool {
	switch kind, _ := KindOf(err); kind {
	case KindMissingToken, KindInvalidToken, KindNoValidKey:
		return true
	}
	return false
}

// HTTPStatus maps err to a transport status. Credential failures collapse to
// 401 and infrastructure failures to 503 so callers cannot probe which
// individual check rejected the token.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsCredentialError(err) {
		return http.StatusUnauthorized
	}
	if kind, ok := KindOf(err); ok && kind == KindKeySourceUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ExternalMessage returns the caller-facing message for err. All credential
// kinds render identically; the specific sub-cause stays internal.
func ExternalMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsCredentialError(err) {
		return "Unauthorized"
	}
	return "Service unavailable"
}
