package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type options struct {
	maxEntries int
	ttl        time.Duration
	prefix     string
	redisAddr  string
	redisPass  string
	redisDB    int
	client     redis.UniversalClient
}

func defaultOptions() options {
	return options{
		maxEntries: 10000,
		ttl:        6 * time.Hour,
		prefix:     "readiness:cache",
		redisAddr:  "localhost:6379",
	}
}

// Option configures a cache backend.
type Option func(*options)

// WithMaxEntries bounds the memory backend.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

// WithTTL sets the redis entry lifetime. Zero keeps entries until invalidated.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.ttl = d
		}
	}
}

// WithPrefix sets the redis key prefix.
func WithPrefix(p string) Option {
	return func(o *options) {
		if p != "" {
			o.prefix = p
		}
	}
}

// WithRedis sets the redis connection parameters.
func WithRedis(addr, password string, db int) Option {
	return func(o *options) {
		if addr != "" {
			o.redisAddr = addr
		}
		o.redisPass = password
		o.redisDB = db
	}
}

// WithRedisClient reuses an existing client instead of dialing.
func WithRedisClient(c redis.UniversalClient) Option {
	return func(o *options) {
		o.client = c
	}
}
