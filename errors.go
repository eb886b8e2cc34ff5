package webcrypto

import (
	"github.com/cockroachdb/errors"
)

// Validation failures are tagged with one of the sentinel errors below so
// that callers can branch with errors.Is. Provider-raised errors are
// forwarded unchanged and carry none of these marks.
var (
	// ErrUnsupportedAlgorithm is returned when no provider is registered for
	// an (operation, algorithm) pair, or the provider lacks a requested
	// optional capability such as export or wrap.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrAccessViolation is returned on algorithm/key mismatch, a missing
	// required key usage, or an attempt to export a non-extractable key.
	ErrAccessViolation = errors.New("access violation")

	// ErrEmptyUsages is returned when a secret or private key would be
	// created with an empty usage set.
	ErrEmptyUsages = errors.New("empty key usages")

	// ErrMalformedInput is returned when key data does not match the
	// declared key format.
	ErrMalformedInput = errors.New("malformed key data")

	// ErrNotImplemented is returned by operations the dispatcher does not
	// implement: UnwrapKey, DeriveKey and DeriveBits.
	ErrNotImplemented = errors.New("not implemented")
)

func unsupportedAlgorithm(name string) error {
	return errors.WithMessagef(ErrUnsupportedAlgorithm, "algorithm %q", name)
}

func accessViolation(format string, args ...any) error {
	return errors.WithMessagef(ErrAccessViolation, format, args...)
}

func malformedInput(format string, args ...any) error {
	return errors.WithMessagef(ErrMalformedInput, format, args...)
}
