package compound

import (
	"errors"
	"strconv"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/service/cache/provider"
)

type impl struct {
	layers []provider.Provider
	// frontTTL caps the ttl of every layer but the last, 0 for no cap
	frontTTL time.Duration
}

type Option func(*impl)

// WithFrontTTL keeps entries in the front layers for at most d, so that a
// process local layer never outlives a shared one by much.
func WithFrontTTL(d time.Duration) Option {
	return func(im *impl) {
		im.frontTTL = d
	}
}

// order of layers is matter, compound cache only handle forward filling
// and return immediately once cache hit
func NewCompound(layers []provider.Provider, opts ...Option) provider.Provider {
	im := &impl{layers: layers}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

func (im *impl) ttlOf(idx int, ttl time.Duration) time.Duration {
	if idx == len(im.layers)-1 || im.frontTTL <= 0 {
		return ttl
	}
	if ttl <= 0 || ttl > im.frontTTL {
		return im.frontTTL
	}
	return ttl
}

func (im *impl) Get(c ctx.Ctx, key string) ([]byte, time.Duration, error) {
	var (
		val    []byte
		ttl    time.Duration
		err    error
		hitIdx = -1
	)

	for idx, lyr := range im.layers {
		if val, ttl, err = lyr.Get(c, key); errors.Is(err, provider.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, time.Duration(0), err
		} else {
			hitIdx = idx
			break
		}
	}

	if hitIdx == -1 {
		return nil, time.Duration(0), provider.ErrNotFound
	}

	// fill layers which missing cache, a failed fill only costs a later miss
	for idx := 0; idx < hitIdx; idx++ {
		if err := im.layers[idx].Set(c, key, val, im.ttlOf(idx, ttl)); err != nil {
			c.WithFields(map[string]interface{}{
				"err":   err,
				"layer": idx,
			}).Warn("compound backfill failed")
		}
	}

	return val, ttl, nil
}

func (im *impl) Set(c ctx.Ctx, key string, value []byte, ttl time.Duration) error {
	for idx, lyr := range im.layers {
		if err := lyr.Set(c, key, value, im.ttlOf(idx, ttl)); err != nil {
			return err
		}
	}
	return nil
}

// incr to last cache and fill all caches front
func (im *impl) Incr(c ctx.Ctx, key string, val int) (int64, time.Duration, error) {
	l := len(im.layers)
	res, ttl, err := im.layers[l-1].Incr(c, key, val)
	if err != nil {
		return 0, time.Duration(0), err
	}

	for idx := 0; idx < l-1; idx++ {
		if err := im.layers[idx].Set(c, key, []byte(strconv.FormatInt(res, 10)), im.ttlOf(idx, ttl)); err != nil {
			return 0, time.Duration(0), err
		}
	}

	return res, ttl, nil
}

func (im *impl) Del(c ctx.Ctx, key string) error {
	for _, lyr := range im.layers {
		if err := lyr.Del(c, key); err != nil {
			return err
		}
	}
	return nil
}
