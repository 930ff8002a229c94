// Package provider holds the byte level caches behind service/cache.
package provider

import (
	"errors"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
)

var (
	ErrNotFound = errors.New("cache miss")
)

// Provider stores raw values under a key with a ttl. A ttl of 0 means no expiry.
type Provider interface {
	// Get returns the value and its remaining ttl, or ErrNotFound
	Get(c ctx.Ctx, key string) ([]byte, time.Duration, error)
	Set(c ctx.Ctx, key string, value []byte, ttl time.Duration) error
	// Incr adds val to an integer value that already exists
	Incr(c ctx.Ctx, key string, val int) (int64, time.Duration, error)
	Del(c ctx.Ctx, key string) error
}
