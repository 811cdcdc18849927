package redis

import "errors"

// Sentinel errors joined with the go-redis cause.
var (
	ErrEmptyConnectionURL   = errors.New("redis: REDIS_URL is empty")
	ErrInvalidConnectionURL = errors.New("redis: invalid connection URL")
	ErrNotReady             = errors.New("redis: server did not answer PING before the connect timeout")
	ErrUnhealthy            = errors.New("redis: store unreachable")
)
