package alerting

import "errors"

// ErrInvalidRule is returned for malformed rules.
var ErrInvalidRule = errors.New("invalid alert rule")
