package usecase

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/service/cache"
	"github.com/x-xyz/nftvault/service/cache/provider/primitive"
	"github.com/x-xyz/nftvault/stores/event/repository"
)

const vaultAddr = domain.Address("0x00000000000000000000000000000000000000aa")

var mockCtx = ctx.Background()

type recordRepo struct {
	mu    sync.Mutex
	name  string
	err   error
	delay time.Duration
	seqs  []uint64
}

func (r *recordRepo) Name() string { return r.name }

func (r *recordRepo) Store(_ ctx.Ctx, events []vault.Event) error {
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.seqs = append(r.seqs, e.Seq)
	}
	return r.err
}

func (r *recordRepo) got() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.seqs...)
}

type countingStore struct {
	vault.EventStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) List(c ctx.Ctx, v domain.Address, opts ...vault.EventListOptionFunc) ([]vault.Event, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.EventStore.List(c, v, opts...)
}

func event(seq uint64, t vault.EventType) vault.Event {
	return vault.Event{
		Id:    string(rune('a' + seq)),
		Vault: vaultAddr,
		Seq:   seq,
		Type:  t,
	}
}

type eventSuite struct {
	suite.Suite

	fast   *recordRepo
	slow   *recordRepo
	broken *recordRepo
	memory vault.EventRepo
	store  *countingStore
	im     vault.EventUseCase
}

func TestEventSuite(t *testing.T) {
	suite.Run(t, new(eventSuite))
}

func (s *eventSuite) SetupTest() {
	s.fast = &recordRepo{name: "fast"}
	s.slow = &recordRepo{name: "slow", delay: 5 * time.Millisecond}
	s.broken = &recordRepo{name: "broken", err: errors.New("down")}
	mem := repository.NewMemory()
	s.memory = mem
	s.store = &countingStore{EventStore: mem}
	s.im = New(&EventUseCaseCfg{
		Repos: []vault.EventRepo{s.fast, s.slow, s.broken, s.memory},
		Store: s.store,
		Cache: cache.New(cache.ServiceConfig{
			Ttl:   time.Minute,
			Pfx:   "events",
			Cache: primitive.NewPrimitive("events", 1),
		}),
	})
}

func (s *eventSuite) TearDownTest() {
	s.im.Close()
}

func (s *eventSuite) TestFanOutKeepsOrder() {
	for i := uint64(1); i <= 20; i += 2 {
		s.im.Publish(mockCtx, event(i, vault.EventMinted), event(i+1, vault.EventLocked))
	}
	s.im.Publish(mockCtx)
	s.im.Wait()

	want := []uint64{}
	for i := uint64(1); i <= 20; i++ {
		want = append(want, i)
	}
	s.Equal(want, s.fast.got())
	s.Equal(want, s.slow.got())
	// a failing repo does not stop the others, nor later batches to itself
	s.Equal(want, s.broken.got())
}

func (s *eventSuite) TestListNewestFirstAndCached() {
	s.im.Publish(mockCtx, event(1, vault.EventMinted), event(2, vault.EventLocked), event(3, vault.EventMinted))
	s.im.Wait()

	res, err := s.im.List(mockCtx, vaultAddr)
	s.NoError(err)
	s.Len(res, 3)
	s.Equal(uint64(3), res[0].Seq)

	res, err = s.im.List(mockCtx, vaultAddr, vault.WithEventType(vault.EventMinted), vault.WithPagination(1, 5))
	s.NoError(err)
	s.Len(res, 1)
	s.Equal(uint64(1), res[0].Seq)
	s.Equal(2, s.store.calls)

	// same page at the same sequence is served from the cache
	_, err = s.im.List(mockCtx, vaultAddr)
	s.NoError(err)
	s.Equal(2, s.store.calls)

	s.im.Publish(mockCtx, event(4, vault.EventRedeemed))
	s.im.Wait()
	res, err = s.im.List(mockCtx, vaultAddr)
	s.NoError(err)
	s.Len(res, 4)
	s.Equal(3, s.store.calls)

	_, err = s.im.List(mockCtx, vaultAddr, vault.WithPagination(0, 501))
	s.ErrorIs(err, domain.ErrBadParamInput)
}

func (s *eventSuite) TestListWithoutStore() {
	im := New(&EventUseCaseCfg{})
	defer im.Close()
	_, err := im.List(mockCtx, vaultAddr)
	s.ErrorIs(err, domain.ErrNotImplemented)
}
