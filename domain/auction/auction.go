package auction

import (
	"math/big"
	"sort"
	"time"

	"github.com/x-xyz/nftvault/domain"
)

type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "pending"
	ProposalStatusApproved ProposalStatus = "approved"
	ProposalStatusRejected ProposalStatus = "rejected"
)

type Proposal struct {
	Id          domain.ProposalId `json:"id"`
	AssetId     domain.AssetId    `json:"assetId"`
	Proposer    domain.Address    `json:"proposer"`
	StartPrice  *big.Int          `json:"startPrice"`
	EndPrice    *big.Int          `json:"endPrice"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Status      ProposalStatus    `json:"status"`
	// set once approved
	AuctionId domain.AuctionId `json:"auctionId,omitempty"`
	DecidedAt time.Time        `json:"decidedAt,omitempty"`
}

// Clone deep copies the proposal.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.StartPrice = domain.CopyAmount(p.StartPrice)
	c.EndPrice = domain.CopyAmount(p.EndPrice)
	return &c
}

type AuctionStatus string

const (
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusSold      AuctionStatus = "sold"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

type Auction struct {
	Id      domain.AuctionId `json:"id"`
	AssetId domain.AssetId   `json:"assetId"`
	// zero for auctions started directly by the owner
	ProposalId domain.ProposalId `json:"proposalId,omitempty"`
	StartPrice *big.Int          `json:"startPrice"`
	EndPrice   *big.Int          `json:"endPrice"`
	StartTime  time.Time         `json:"startTime"`
	// Duration is the max auction duration at the time the auction started
	Duration time.Duration `json:"duration"`
	Status   AuctionStatus `json:"status"`

	Buyer     domain.Address `json:"buyer,omitempty"`
	SoldPrice *big.Int       `json:"soldPrice,omitempty"`
	EndedAt   time.Time      `json:"endedAt,omitempty"`
}

func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}

// PriceAt is the linear decay from StartPrice at StartTime down to EndPrice at
// StartTime+Duration, clamped to EndPrice afterwards. The decay term is floored
// so the price rounds up.
func (a *Auction) PriceAt(now time.Time) *big.Int {
	if !now.After(a.StartTime) || a.StartPrice.Cmp(a.EndPrice) == 0 {
		return domain.CopyAmount(a.StartPrice)
	}
	elapsed := now.Sub(a.StartTime)
	if a.Duration <= 0 || elapsed >= a.Duration {
		return domain.CopyAmount(a.EndPrice)
	}
	decay := new(big.Int).Sub(a.StartPrice, a.EndPrice)
	decay.Mul(decay, big.NewInt(int64(elapsed)))
	decay.Quo(decay, big.NewInt(int64(a.Duration)))
	return decay.Sub(a.StartPrice, decay)
}

// Clone deep copies the auction.
func (a *Auction) Clone() *Auction {
	c := *a
	c.StartPrice = domain.CopyAmount(a.StartPrice)
	c.EndPrice = domain.CopyAmount(a.EndPrice)
	if a.SoldPrice != nil {
		c.SoldPrice = domain.CopyAmount(a.SoldPrice)
	}
	return &c
}

// Book is the auction state of one vault.
type Book struct {
	MinSellPrice       *big.Int
	MaxAuctionDuration time.Duration

	LastProposalId domain.ProposalId
	LastAuctionId  domain.AuctionId

	Proposals map[domain.ProposalId]*Proposal
	Auctions  map[domain.AuctionId]*Auction

	PendingByAsset map[domain.AssetId]domain.ProposalId
	ActiveByAsset  map[domain.AssetId]domain.AuctionId
}

func NewBook(minSellPrice *big.Int, maxAuctionDuration time.Duration) *Book {
	return &Book{
		MinSellPrice:       domain.CopyAmount(minSellPrice),
		MaxAuctionDuration: maxAuctionDuration,
		Proposals:          map[domain.ProposalId]*Proposal{},
		Auctions:           map[domain.AuctionId]*Auction{},
		PendingByAsset:     map[domain.AssetId]domain.ProposalId{},
		ActiveByAsset:      map[domain.AssetId]domain.AuctionId{},
	}
}

// Clone deep copies the book.
func (b *Book) Clone() *Book {
	c := &Book{
		MinSellPrice:       domain.CopyAmount(b.MinSellPrice),
		MaxAuctionDuration: b.MaxAuctionDuration,
		LastProposalId:     b.LastProposalId,
		LastAuctionId:      b.LastAuctionId,
		Proposals:          make(map[domain.ProposalId]*Proposal, len(b.Proposals)),
		Auctions:           make(map[domain.AuctionId]*Auction, len(b.Auctions)),
		PendingByAsset:     make(map[domain.AssetId]domain.ProposalId, len(b.PendingByAsset)),
		ActiveByAsset:      make(map[domain.AssetId]domain.AuctionId, len(b.ActiveByAsset)),
	}
	for id, p := range b.Proposals {
		c.Proposals[id] = p.Clone()
	}
	for id, a := range b.Auctions {
		c.Auctions[id] = a.Clone()
	}
	for k, v := range b.PendingByAsset {
		c.PendingByAsset[k] = v
	}
	for k, v := range b.ActiveByAsset {
		c.ActiveByAsset[k] = v
	}
	return c
}

// ActiveAuction returns the active auction of the asset, or nil.
func (b *Book) ActiveAuction(assetId domain.AssetId) *Auction {
	id, ok := b.ActiveByAsset[assetId]
	if !ok {
		return nil
	}
	return b.Auctions[id]
}

// PendingProposal returns the pending proposal of the asset, or nil.
func (b *Book) PendingProposal(assetId domain.AssetId) *Proposal {
	id, ok := b.PendingByAsset[assetId]
	if !ok {
		return nil
	}
	return b.Proposals[id]
}

// IsAssetLocked reports whether a pending proposal or an active auction references the asset.
func (b *Book) IsAssetLocked(assetId domain.AssetId) bool {
	_, pending := b.PendingByAsset[assetId]
	_, active := b.ActiveByAsset[assetId]
	return pending || active
}

// ActiveAssets returns the assets under an active auction, ascending.
func (b *Book) ActiveAssets() []domain.AssetId {
	res := make([]domain.AssetId, 0, len(b.ActiveByAsset))
	for assetId := range b.ActiveByAsset {
		res = append(res, assetId)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// PendingProposals returns the pending proposal ids, ascending.
func (b *Book) PendingProposals() []domain.ProposalId {
	res := make([]domain.ProposalId, 0, len(b.PendingByAsset))
	for _, id := range b.PendingByAsset {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Clock is the time source of price decay.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Custody answers whether the vault holds an asset.
type Custody interface {
	InCustody(assetId domain.AssetId) bool
}

// UseCase applies auction transitions to a Book.
type UseCase interface {
	Propose(b *Book, c Custody, assetId domain.AssetId, startPrice, endPrice *big.Int, proposer domain.Address, now time.Time) (*Proposal, error)
	Approve(b *Book, proposalId domain.ProposalId, approver domain.Address, now time.Time) (*Proposal, *Auction, error)
	Reject(b *Book, proposalId domain.ProposalId, approver domain.Address, now time.Time) (*Proposal, error)
	StartDirect(b *Book, c Custody, assetId domain.AssetId, startPrice, endPrice *big.Int, caller domain.Address, now time.Time) (*Auction, error)
	CurrentPrice(b *Book, assetId domain.AssetId, now time.Time) (*big.Int, error)
	// AcceptBid marks the auction sold to bidder and returns it with the price
	AcceptBid(b *Book, assetId domain.AssetId, bidder domain.Address, now time.Time) (*Auction, error)
	Cancel(b *Book, assetId domain.AssetId, caller domain.Address, now time.Time) (*Auction, error)

	SetMinSellPrice(b *Book, caller domain.Address, price *big.Int) error
	SetMaxAuctionDuration(b *Book, caller domain.Address, d time.Duration) error
}
