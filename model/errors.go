package model

import "errors"

// ErrUnsupportedTarget indicates the requested type cannot be introspected
// or proxied. It is returned before any model is built.
var ErrUnsupportedTarget = errors.New("unsupported proxy target")

// ErrUnknownMember indicates a hook or filter names a member that is absent
// from the structural model. Only returned when strict validation is on.
var ErrUnknownMember = errors.New("unknown member")

// ErrInvariantViolation indicates two property identities collided during
// classification. It points at a classifier defect, not a caller error.
var ErrInvariantViolation = errors.New("structural model invariant violated")
