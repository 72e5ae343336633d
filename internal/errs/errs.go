// Package errs defines the typed error kinds shared across the patch
// engine, gear model, and HTTP surface.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Handlers map Kind to an HTTP status
// in one place instead of string-matching error messages.
type Kind string

const (
	// NotFound indicates a gear or patch id does not exist in Storage.
	NotFound Kind = "not_found"
	// BadRequest indicates a malformed id, body, or query parameter.
	BadRequest Kind = "bad_request"
	// InvalidPatch indicates nodes/edges are malformed: not arrays,
	// duplicate node ids, or an edge referencing an unknown node.
	InvalidPatch Kind = "invalid_patch"
	// CycleDetected indicates the patch's edge set is not a DAG.
	CycleDetected Kind = "cycle_detected"
	// InvalidURL indicates a URL failed to parse or used a disallowed scheme.
	InvalidURL Kind = "invalid_url"
	// DisallowedHost indicates a URL's host resolves to a private, loopback,
	// or link-local range and is not allow-listed (SSRF guard).
	DisallowedHost Kind = "disallowed_host"
	// Timeout indicates an outbound call exceeded its deadline.
	Timeout Kind = "timeout"
	// HTTPStatus indicates a downstream http node responded non-2xx.
	HTTPStatus Kind = "http_status"
	// LocalFnMissing indicates a local node named a function not present
	// in the registry.
	LocalFnMissing Kind = "local_fn_missing"
	// LLMFailure indicates the LLM adapter returned an error.
	LLMFailure Kind = "llm_failure"
)

// Error is the concrete error type returned by the engine and gear model.
// Code carries extra machine detail for HTTPStatus (the downstream status
// code); it is zero for every other Kind.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, carrying cause for errors.Is/As.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// HTTPStatusErr builds the HTTPStatus kind with the downstream response code.
func HTTPStatusErr(code int, reason string) *Error {
	return &Error{Kind: HTTPStatus, Message: reason, Code: code}
}

// KindOf reports the Kind of the first *Error in err's chain, and false
// when there is none. Error has no Is method, so errors.Is does not match
// by Kind; branch on the result of KindOf instead.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
