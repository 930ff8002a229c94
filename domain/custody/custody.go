package custody

import (
	"sort"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

type AssetRecord struct {
	AssetId     domain.AssetId `json:"assetId"`
	InCustody   bool           `json:"inCustody"`
	DepositedAt time.Time      `json:"depositedAt"`
	ReleasedTo  domain.Address `json:"releasedTo,omitempty"`
	ReleasedAt  time.Time      `json:"releasedAt,omitempty"`
}

// Registry tracks the NFTs the vault holds or used to hold.
type Registry struct {
	Records map[domain.AssetId]*AssetRecord
}

func NewRegistry() *Registry {
	return &Registry{Records: map[domain.AssetId]*AssetRecord{}}
}

func (r *Registry) Clone() *Registry {
	c := &Registry{Records: make(map[domain.AssetId]*AssetRecord, len(r.Records))}
	for id, rec := range r.Records {
		cp := *rec
		c.Records[id] = &cp
	}
	return c
}

func (r *Registry) InCustody(assetId domain.AssetId) bool {
	rec, ok := r.Records[assetId]
	return ok && rec.InCustody
}

// Record returns a copy of the record of the asset.
func (r *Registry) Record(assetId domain.AssetId) (AssetRecord, bool) {
	rec, ok := r.Records[assetId]
	if !ok {
		return AssetRecord{}, false
	}
	return *rec, true
}

// Assets returns the assets currently in custody, ascending.
func (r *Registry) Assets() []domain.AssetId {
	res := []domain.AssetId{}
	for id, rec := range r.Records {
		if rec.InCustody {
			res = append(res, id)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// NFT is the collection contract holding the vault's assets.
type NFT interface {
	OwnerOf(ctx ctx.Ctx, assetId domain.AssetId) (domain.Address, error)
	// Transfer moves the asset from the vault to the receiver
	Transfer(ctx ctx.Ctx, assetId domain.AssetId, to domain.Address) error
}

type UseCase interface {
	// Deposit records the asset once owner, as reported by the NFT contract, is the vault
	Deposit(r *Registry, assetId domain.AssetId, owner domain.Address, now time.Time) (*AssetRecord, error)
	// Release is the administrative withdrawal; locked is true while a proposal or auction references the asset
	Release(r *Registry, assetId domain.AssetId, to domain.Address, locked bool, now time.Time) (*AssetRecord, error)
	// Settle releases an asset sold by its auction
	Settle(r *Registry, assetId domain.AssetId, to domain.Address, now time.Time) (*AssetRecord, error)
}
