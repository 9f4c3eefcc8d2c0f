package proxy

import "errors"

// ErrUnsetUnsupported is returned by every Unset call. A proxied member
// cannot be reverted to an absent state while staying synchronized.
var ErrUnsetUnsupported = errors.New("unset is not supported on proxied members")

// ErrBadArguments indicates a call whose arguments do not match the
// method's declared parameters.
var ErrBadArguments = errors.New("bad arguments")

// ErrNotReferenceable indicates a property whose storage cannot be handed
// out as a live reference.
var ErrNotReferenceable = errors.New("property is not referenceable")

// ErrTypeMismatch indicates a value that cannot be stored in a property.
var ErrTypeMismatch = errors.New("type mismatch")
