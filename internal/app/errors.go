package service

import "errors"

var (
	// ErrNotStarted is returned before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrBackpressure is returned when the ingestion queue is full.
	ErrBackpressure = errors.New("ingestion queue full")
)
