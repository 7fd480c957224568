package readiness

import "errors"

var (
	ErrInvalidWeights = errors.New("invalid readiness weights")
	ErrInvalidConfig  = errors.New("invalid readiness config")
)
