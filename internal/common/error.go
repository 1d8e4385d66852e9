// Package common defines sentinel errors and small helpers shared by the
// token store, its backends and the operator CLI. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Caller errors, detected before any backend call.
	ErrInvalidArgument = errors.New("invalid argument")

	// Hashing primitive failed (RNG failure, malformed digest).
	ErrHashing = errors.New("hashing error")

	// Persistence backend failed. The backend error is wrapped alongside.
	ErrStorage = errors.New("storage error")

	// Configuration errors.
	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnknownHasher  = errors.New("unknown hasher")
)
