package redisclient

import (
	"context"
	"runtime"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/x-xyz/nftvault/base/backoff"
	"github.com/x-xyz/nftvault/base/log"
)

// The constant
const (
	dialTimeout  = 2 * time.Second
	readTimeout  = 1500 * time.Millisecond
	writeTimeout = 1500 * time.Millisecond

	retryCount = 3
)

// Config is the redis section of the service config
type Config struct {
	URI            string  `mapstructure:"uri"`
	Password       string  `mapstructure:"password"`
	PoolMultiplier float64 `mapstructure:"poolmultiplier"`
	// Retry dials up to retryCount more times with exponential backoff
	Retry bool `mapstructure:"retry"`
}

// MustConnectRedis connects to one redis uri
// NOTE This function panics if the connection fails.
func MustConnectRedis(cfg Config) *redis.Pool {
	p, err := ConnectRedis(cfg)
	if err != nil {
		log.Log().WithFields(log.Fields{"redisURI": cfg.URI, "err": err}).Panic("fail to dial Redis")
	}
	return p
}

func newPool(cfg Config) *redis.Pool {
	maxIdle := 200
	maxActive := 1024
	if cfg.PoolMultiplier > 0 {
		cpu := float64(runtime.NumCPU())
		// allowing 25% idle connection
		maxIdle = int(cpu * cfg.PoolMultiplier / 4)
		maxActive = int(cpu * cfg.PoolMultiplier)
	}

	opts := []redis.DialOption{
		redis.DialConnectTimeout(dialTimeout),
		redis.DialReadTimeout(readTimeout),
		redis.DialWriteTimeout(writeTimeout),
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}
	return &redis.Pool{
		MaxIdle:     maxIdle,
		MaxActive:   maxActive,
		Wait:        true,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", cfg.URI, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			// No need to test if it's been recycled less than 1 sec.
			if time.Since(t) < time.Second {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func ping(p *redis.Pool) error {
	c, err := p.Dial()
	if err != nil {
		return err
	}
	defer c.Close()
	_, err = c.Do("PING")
	return err
}

// ConnectRedis connects to one redis uri
func ConnectRedis(cfg Config) (*redis.Pool, error) {
	p := newPool(cfg)

	attempts := 1
	if cfg.Retry {
		attempts += retryCount
	}
	err := backoff.Retry(context.Background(), backoff.NewExponential(500*time.Millisecond, 4*time.Second), attempts, func(i int) error {
		err := ping(p)
		if err != nil {
			log.Log().WithFields(log.Fields{
				"redisURI": cfg.URI,
				"err":      err,
				"retry":    i,
			}).Error("fail to dial Redis")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Log().WithField("redisURI", cfg.URI).Info("redis connected")
	return p, nil
}
