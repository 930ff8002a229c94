package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/viney-shih/goroutines"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/service/cache"
)

const (
	defaultQueueLength = 1024
	scheduleTimeout    = 100 * time.Millisecond
)

type EventUseCaseCfg struct {
	// Repos receive every committed event
	Repos []vault.EventRepo
	// Store serves List, nil disables listings
	Store vault.EventStore
	// Cache holds listings, keyed by the last sequence number of the vault
	Cache       cache.Service
	QueueLength int
	Metrics     metrics.Service
}

type worker struct {
	repo vault.EventRepo
	pool *goroutines.Pool
}

type impl struct {
	workers []worker
	store   vault.EventStore
	cache   cache.Service
	met     metrics.Service

	wg      sync.WaitGroup
	lastSeq sync.Map
}

// New fans events out to every repo. Each repo has one worker, so a repo sees
// the events of a vault in commit order.
func New(cfg *EventUseCaseCfg) vault.EventUseCase {
	queue := cfg.QueueLength
	if queue <= 0 {
		queue = defaultQueueLength
	}
	met := cfg.Metrics
	if met == nil {
		met = metrics.Nop()
	}
	im := &impl{
		store: cfg.Store,
		cache: cfg.Cache,
		met:   met,
	}
	for _, r := range cfg.Repos {
		im.workers = append(im.workers, worker{
			repo: r,
			pool: goroutines.NewPool(1, goroutines.WithTaskQueueLength(queue), goroutines.WithPreAllocWorkers(1)),
		})
	}
	return im
}

// Publish never blocks the caller for long: a repo whose queue stays full
// loses the batch, which is logged and counted.
func (im *impl) Publish(c ctx.Ctx, events ...vault.Event) {
	if len(events) == 0 {
		return
	}
	batch := append([]vault.Event(nil), events...)
	last := batch[len(batch)-1]
	im.lastSeq.Store(last.Vault.ToLower(), last.Seq)

	for _, w := range im.workers {
		w := w
		im.wg.Add(1)
		err := w.pool.ScheduleWithTimeout(scheduleTimeout, func() {
			defer im.wg.Done()
			defer im.met.BumpTime("deliver.time", "repo", w.repo.Name()).End()
			if err := w.repo.Store(c, batch); err != nil {
				im.met.BumpSum("deliver.err", 1, "repo", w.repo.Name())
				c.WithFields(log.Fields{
					"err":  err,
					"repo": w.repo.Name(),
					"seq":  last.Seq,
				}).Error("repo.Store failed")
			}
		})
		if err != nil {
			im.wg.Done()
			im.met.BumpSum("deliver.dropped", float64(len(batch)), "repo", w.repo.Name())
			c.WithFields(log.Fields{
				"err":  err,
				"repo": w.repo.Name(),
				"seq":  last.Seq,
			}).Error("failed to ScheduleWithTimeout")
		}
	}
}

func (im *impl) Wait() {
	im.wg.Wait()
}

func (im *impl) Close() {
	im.wg.Wait()
	for _, w := range im.workers {
		w.pool.Release()
	}
}

func listKey(v domain.Address, seq uint64, o vault.EventListOptions) string {
	t, asset, account := "", "", ""
	if o.Type != nil {
		t = string(*o.Type)
	}
	if o.AssetId != nil {
		asset = o.AssetId.String()
	}
	if o.Account != nil {
		account = o.Account.ToLowerStr()
	}
	return fmt.Sprintf("%s:%d:%s:%s:%s:%d:%d", v.ToLowerStr(), seq, t, asset, account, o.Offset, o.Limit)
}

func (im *impl) List(c ctx.Ctx, v domain.Address, opts ...vault.EventListOptionFunc) ([]vault.Event, error) {
	if im.store == nil {
		return nil, xerrors.Errorf("event listing: %w", domain.ErrNotImplemented)
	}
	o, err := vault.GetEventListOptions(opts...)
	if err != nil {
		return nil, err
	}
	getter := func() (interface{}, error) {
		res, err := im.store.List(c, v, opts...)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}

	seq, ok := im.lastSeq.Load(v.ToLower())
	if im.cache == nil || !ok {
		res, err := getter()
		if err != nil {
			return nil, err
		}
		return *res.(*[]vault.Event), nil
	}

	// deliveries are asynchronous, so a cached page can trail the latest
	// commit until the cache ttl expires
	res := []vault.Event{}
	if err := im.cache.GetByFunc(c, listKey(v, seq.(uint64), o), &res, getter); err != nil {
		return nil, err
	}
	return res, nil
}

func (im *impl) Get(c ctx.Ctx, v domain.Address, seq uint64) (*vault.Event, error) {
	if im.store == nil {
		return nil, xerrors.Errorf("event lookup: %w", domain.ErrNotImplemented)
	}
	return im.store.Get(c, v, seq)
}
