package cache

import (
	"errors"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/service/cache/provider"
)

var (
	ErrNotFound = errors.New("Cache not found")
)

type OneTimeGetter func() (interface{}, error)

type Serializer func(interface{}) ([]byte, error)

type Deserializer func([]byte, interface{}) error

// Service caches serialized values under a key prefix.
type Service interface {
	// GetByFunc fills container from the cache, or from getter on a miss.
	// Concurrent misses of the same key share one getter call.
	GetByFunc(c ctx.Ctx, key string, container interface{}, getter OneTimeGetter) error
	Get(c ctx.Ctx, key string, container interface{}) error
	Set(c ctx.Ctx, key string, value interface{}) error
	Del(c ctx.Ctx, key string) error
}

type ServiceConfig struct {
	Ttl         time.Duration
	Pfx         string
	Cache       provider.Provider
	Serialize   Serializer
	Deserialize Deserializer
	// optional, hit and miss counters tagged with Pfx
	Metrics metrics.Service
}
