package redis

import (
	"errors"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/service/cache/provider"
	"github.com/x-xyz/nftvault/service/redis"
)

type impl struct {
	redis redis.Service
}

// NewRedis is the shared cache layer, visible to every replica of the service
func NewRedis(redis redis.Service) provider.Provider {
	return &impl{redis}
}

func (im *impl) ttl(c ctx.Ctx, key string) (time.Duration, error) {
	ttl, err := im.redis.TTL(c, key)
	if errors.Is(err, redis.ErrNoTTL) {
		return time.Duration(0), nil
	} else if errors.Is(err, redis.ErrNotFound) {
		return time.Duration(0), provider.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).WithField("key", key).Error("redis.TTL failed")
		return time.Duration(0), err
	}
	return time.Duration(ttl) * time.Second, nil
}

func (im *impl) Get(c ctx.Ctx, key string) ([]byte, time.Duration, error) {
	val, err := im.redis.Get(c, key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, time.Duration(0), provider.ErrNotFound
	} else if err != nil {
		c.WithField("err", err).WithField("key", key).Error("redis.Get failed")
		return nil, time.Duration(0), err
	}
	ttl, err := im.ttl(c, key)
	if err != nil {
		return nil, time.Duration(0), err
	}
	return val, ttl, nil
}

func (im *impl) Set(c ctx.Ctx, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = redis.Forever
	}
	if err := im.redis.Set(c, key, value, ttl); err != nil {
		c.WithField("err", err).WithField("key", key).Error("redis.Set failed")
		return err
	}
	return nil
}

func (im *impl) Incr(c ctx.Ctx, key string, val int) (int64, time.Duration, error) {
	// a missing key is not created, same as the local cache
	if exists, err := im.redis.Exists(c, key); err != nil {
		c.WithField("err", err).WithField("key", key).Error("redis.Exists failed")
		return 0, time.Duration(0), err
	} else if !exists {
		return 0, time.Duration(0), provider.ErrNotFound
	}
	res, err := im.redis.Incrby(c, key, val)
	if err != nil {
		c.WithField("err", err).WithField("key", key).Error("redis.Incrby failed")
		return 0, time.Duration(0), err
	}
	ttl, err := im.ttl(c, key)
	if err != nil {
		return 0, time.Duration(0), err
	}
	return res, ttl, nil
}

func (im *impl) Del(c ctx.Ctx, key string) error {
	if _, err := im.redis.Del(c, key); err != nil {
		c.WithField("err", err).WithField("key", key).Error("redis.Del failed")
		return err
	}
	return nil
}
