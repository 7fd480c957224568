package model

import (
	"errors"
	"fmt"
)

// Structural errors. These are returned before any computation happens.
var (
	ErrInvalidRange    = errors.New("invalid range")
	ErrInvalidDate     = errors.New("invalid date")
	ErrUnknownPlayer   = errors.New("unknown player")
	ErrInvalidGrouping = errors.New("invalid grouping")
	ErrInvalidHorizon  = errors.New("invalid horizon")
	ErrInvalidFamily   = errors.New("invalid family")
	ErrInvalidRecord   = errors.New("invalid record")

	// ErrInvalidWindow is an invalid range over window lengths.
	ErrInvalidWindow = fmt.Errorf("%w: window", ErrInvalidRange)
)
