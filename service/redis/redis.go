package redis

import (
	"errors"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
)

// Forever is the expire of keys that never expire
const Forever = time.Duration(-1)

var (
	// ErrNotFound is returned when the key does not exist
	ErrNotFound = errors.New("redis key not found")
	// ErrNoTTL is returned by TTL for keys without expire
	ErrNoTTL = errors.New("redis key has no ttl")
	// ErrNoPool is returned when the service was built without a pool
	ErrNoPool = errors.New("redis pool not configured")
)

// Service is the subset of redis commands the vault service uses
type Service interface {
	Get(context ctx.Ctx, key string) ([]byte, error)
	Set(context ctx.Ctx, key string, val []byte, expire time.Duration) error
	Del(context ctx.Ctx, keys ...string) (int, error)
	Exists(context ctx.Ctx, key string) (bool, error)
	// TTL returns the remaining seconds of key
	TTL(context ctx.Ctx, key string) (int, error)
	Incrby(context ctx.Ctx, key string, val int) (int64, error)
	// Publish sends msg on channel and returns the number of receivers
	Publish(context ctx.Ctx, channel string, msg []byte) (int, error)
	Ping(context ctx.Ctx) error
	Name() string
}
