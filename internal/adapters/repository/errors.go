package repository

import "errors"

var (
	// ErrFetch wraps upstream read failures.
	ErrFetch = errors.New("metric store fetch failed")
	// ErrWrite wraps upstream write failures.
	ErrWrite = errors.New("metric store write failed")
)
