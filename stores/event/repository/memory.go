package repository

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/vault"
)

type memoryRepo struct {
	mu     sync.RWMutex
	events map[domain.Address][]vault.Event
	seen   map[string]bool
}

// NewMemory keeps every event in process. It backs listings when no
// database is configured.
func NewMemory() *memoryRepo {
	return &memoryRepo{
		events: map[domain.Address][]vault.Event{},
		seen:   map[string]bool{},
	}
}

func (r *memoryRepo) Name() string {
	return "memory"
}

func (r *memoryRepo) Store(_ ctx.Ctx, events []vault.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		if r.seen[e.Id] {
			continue
		}
		r.seen[e.Id] = true
		v := e.Vault.ToLower()
		r.events[v] = append(r.events[v], e)
	}
	return nil
}

func (r *memoryRepo) List(_ ctx.Ctx, v domain.Address, opts ...vault.EventListOptionFunc) ([]vault.Event, error) {
	o, err := vault.GetEventListOptions(opts...)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.events[v.ToLower()]
	res := []vault.Event{}
	skipped := 0
	// stored in commit order, listed newest first
	for i := len(all) - 1; i >= 0 && len(res) < o.Limit; i-- {
		if !matches(all[i], o) {
			continue
		}
		if skipped < o.Offset {
			skipped++
			continue
		}
		res = append(res, all[i])
	}
	return res, nil
}

func (r *memoryRepo) Get(_ ctx.Ctx, v domain.Address, seq uint64) (*vault.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events[v.ToLower()] {
		if e.Seq == seq {
			return &e, nil
		}
	}
	return nil, xerrors.Errorf("event %d: %w", seq, domain.ErrNotFound)
}

func matches(e vault.Event, o vault.EventListOptions) bool {
	if o.Type != nil && e.Type != *o.Type {
		return false
	}
	if o.AssetId != nil && (e.AssetId == nil || *e.AssetId != *o.AssetId) {
		return false
	}
	if o.Account != nil && !e.Account.Equals(*o.Account) {
		return false
	}
	return true
}
