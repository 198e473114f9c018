package domain

import "github.com/pkg/errors"

// ErrMalformed marks a payload that could not be decoded or broke a
// view-model invariant. Handlers skip such messages.
var ErrMalformed = errors.New("malformed payload")

func malformedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformed, format, args...)
}

// IsMalformed reports whether err was caused by a malformed payload.
func IsMalformed(err error) bool {
	return errors.Cause(err) == ErrMalformed
}
