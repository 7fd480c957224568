package registry

import "errors"

// ErrInvalidEntry is returned when a registry entry fails validation.
var ErrInvalidEntry = errors.New("invalid registry entry")
