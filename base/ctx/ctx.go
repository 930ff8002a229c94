package ctx

import (
	"context"
	"time"

	log "github.com/x-xyz/nftvault/base/log"
)

// Ctx carries a context.Context together with the logger of the request.
type Ctx struct {
	context.Context
	log.Logger
}

func Background() Ctx {
	return Ctx{
		Context: context.Background(),
		Logger:  log.Log(),
	}
}

func Todo() Ctx {
	return Ctx{
		Context: context.TODO(),
		Logger:  log.Log(),
	}
}

// From wraps a plain context with the default logger.
func From(parent context.Context) Ctx {
	if c, ok := parent.(Ctx); ok {
		return c
	}
	return Ctx{
		Context: parent,
		Logger:  log.Log(),
	}
}

func WithValue(parent Ctx, key string, val interface{}) Ctx {
	return Ctx{
		Context: context.WithValue(parent.Context, ctxKey(key), val),
		Logger:  parent.Logger.WithField(key, val),
	}
}

func WithValues(parent Ctx, kvs map[string]interface{}) Ctx {
	c := parent
	for k, v := range kvs {
		c = WithValue(c, k, v)
	}
	return c
}

// Value reads back a value stored by WithValue.
func Value(c Ctx, key string) interface{} {
	return c.Context.Value(ctxKey(key))
}

func WithLogger(parent Ctx, logger log.Logger) Ctx {
	return Ctx{
		Context: parent.Context,
		Logger:  logger,
	}
}

func WithCancel(parent Ctx) (Ctx, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return Ctx{
		Context: c,
		Logger:  parent.Logger,
	}, cancel
}

func WithTimeout(parent Ctx, timeout time.Duration) (Ctx, context.CancelFunc) {
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return Ctx{
		Context: c,
		Logger:  parent.Logger,
	}, cancel
}

// Detach keeps the values and logger of parent but never expires.
func Detach(parent Ctx) Ctx {
	return Ctx{
		Context: detached{parent.Context},
		Logger:  parent.Logger,
	}
}

type detached struct {
	parent context.Context
}

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{}       { return nil }
func (detached) Err() error                  { return nil }

func (d detached) Value(key interface{}) interface{} {
	return d.parent.Value(key)
}

type ctxKey string
