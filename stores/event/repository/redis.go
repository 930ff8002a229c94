package repository

import (
	"encoding/json"
	"time"

	"github.com/x-xyz/nftvault/base/backoff"
	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain/keys"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/service/redis"
)

const publishAttempts = 3

type redisRepo struct {
	redis redis.Service
	retry time.Duration
}

// NewRedis publishes every event as JSON on the vault's event channel.
func NewRedis(r redis.Service, retry time.Duration) *redisRepo {
	return &redisRepo{redis: r, retry: retry}
}

func (r *redisRepo) Name() string {
	return "redis"
}

func (r *redisRepo) Store(c ctx.Ctx, events []vault.Event) error {
	bo := backoff.NewExponential(r.retry, 8*r.retry)
	for _, e := range events {
		msg, err := json.Marshal(e)
		if err != nil {
			c.WithField("err", err).Error("json.Marshal failed")
			return err
		}
		channel := keys.EventChannel(string(e.Vault))
		err = backoff.Retry(c, bo, publishAttempts, func(int) error {
			_, err := r.redis.Publish(c, channel, msg)
			return err
		})
		if err != nil {
			c.WithField("err", err).WithField("channel", channel).Error("redis.Publish failed")
			return err
		}
	}
	return nil
}
