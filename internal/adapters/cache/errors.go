package cache

import "errors"

var (
	ErrUnknownBackend = errors.New("unknown cache backend")
	ErrRedis          = errors.New("redis cache failure")
)
