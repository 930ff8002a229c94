package usecase

import (
	"math/big"
	"time"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/auction"
)

type impl struct {
	owner domain.Address
}

// New returns the auction rules of a vault owned by owner.
func New(owner domain.Address) auction.UseCase {
	return &impl{owner: owner}
}

func (im *impl) checkOwner(caller domain.Address) error {
	if !caller.Equals(im.owner) {
		return xerrors.Errorf("%s is not the owner: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

// checkNew holds the preconditions shared by proposals and direct auctions.
func (im *impl) checkNew(b *auction.Book, c auction.Custody, assetId domain.AssetId, startPrice, endPrice *big.Int) error {
	if !c.InCustody(assetId) {
		return xerrors.Errorf("asset %s: %w", assetId, domain.ErrNFTNotOwned)
	}
	if p := b.PendingProposal(assetId); p != nil {
		return xerrors.Errorf("asset %s has proposal %d: %w", assetId, p.Id, domain.ErrProposalAlreadyExists)
	}
	if a := b.ActiveAuction(assetId); a != nil {
		return xerrors.Errorf("asset %s has auction %d: %w", assetId, a.Id, domain.ErrAuctionAlreadyActive)
	}
	if !domain.IsPositive(endPrice) || startPrice == nil {
		return xerrors.Errorf("empty price: %w", domain.ErrInvalidAuctionParams)
	}
	if endPrice.Cmp(b.MinSellPrice) < 0 {
		return xerrors.Errorf("end price %s below floor %s: %w",
			domain.FormatAmount(endPrice), domain.FormatAmount(b.MinSellPrice), domain.ErrInvalidAuctionParams)
	}
	if startPrice.Cmp(endPrice) < 0 {
		return xerrors.Errorf("start price %s below end price %s: %w",
			domain.FormatAmount(startPrice), domain.FormatAmount(endPrice), domain.ErrInvalidAuctionParams)
	}
	return nil
}

func (im *impl) open(b *auction.Book, assetId domain.AssetId, proposalId domain.ProposalId, startPrice, endPrice *big.Int, now time.Time) *auction.Auction {
	b.LastAuctionId++
	a := &auction.Auction{
		Id:         b.LastAuctionId,
		AssetId:    assetId,
		ProposalId: proposalId,
		StartPrice: domain.CopyAmount(startPrice),
		EndPrice:   domain.CopyAmount(endPrice),
		StartTime:  now,
		Duration:   b.MaxAuctionDuration,
		Status:     auction.AuctionStatusActive,
	}
	b.Auctions[a.Id] = a
	b.ActiveByAsset[assetId] = a.Id
	return a
}

func (im *impl) Propose(b *auction.Book, c auction.Custody, assetId domain.AssetId, startPrice, endPrice *big.Int, proposer domain.Address, now time.Time) (*auction.Proposal, error) {
	if proposer.IsEmpty() {
		return nil, domain.ErrInvalidAddress
	}
	if err := im.checkNew(b, c, assetId, startPrice, endPrice); err != nil {
		return nil, err
	}

	b.LastProposalId++
	p := &auction.Proposal{
		Id:          b.LastProposalId,
		AssetId:     assetId,
		Proposer:    proposer.ToLower(),
		StartPrice:  domain.CopyAmount(startPrice),
		EndPrice:    domain.CopyAmount(endPrice),
		SubmittedAt: now,
		Status:      auction.ProposalStatusPending,
	}
	b.Proposals[p.Id] = p
	b.PendingByAsset[assetId] = p.Id
	return p, nil
}

func (im *impl) pending(b *auction.Book, proposalId domain.ProposalId) (*auction.Proposal, error) {
	p, ok := b.Proposals[proposalId]
	if !ok {
		return nil, xerrors.Errorf("proposal %d: %w", proposalId, domain.ErrNoSuchProposal)
	}
	if p.Status != auction.ProposalStatusPending {
		return nil, xerrors.Errorf("proposal %d is %s: %w", proposalId, p.Status, domain.ErrProposalNotPending)
	}
	return p, nil
}

func (im *impl) Approve(b *auction.Book, proposalId domain.ProposalId, approver domain.Address, now time.Time) (*auction.Proposal, *auction.Auction, error) {
	if err := im.checkOwner(approver); err != nil {
		return nil, nil, err
	}
	p, err := im.pending(b, proposalId)
	if err != nil {
		return nil, nil, err
	}
	// a pending proposal excludes an active auction on the same asset
	if a := b.ActiveAuction(p.AssetId); a != nil {
		return nil, nil, xerrors.Errorf("asset %s has auction %d: %w", p.AssetId, a.Id, domain.ErrAuctionAlreadyActive)
	}

	delete(b.PendingByAsset, p.AssetId)
	a := im.open(b, p.AssetId, p.Id, p.StartPrice, p.EndPrice, now)
	p.Status = auction.ProposalStatusApproved
	p.AuctionId = a.Id
	p.DecidedAt = now
	return p, a, nil
}

func (im *impl) Reject(b *auction.Book, proposalId domain.ProposalId, approver domain.Address, now time.Time) (*auction.Proposal, error) {
	if err := im.checkOwner(approver); err != nil {
		return nil, err
	}
	p, err := im.pending(b, proposalId)
	if err != nil {
		return nil, err
	}
	delete(b.PendingByAsset, p.AssetId)
	p.Status = auction.ProposalStatusRejected
	p.DecidedAt = now
	return p, nil
}

func (im *impl) StartDirect(b *auction.Book, c auction.Custody, assetId domain.AssetId, startPrice, endPrice *big.Int, caller domain.Address, now time.Time) (*auction.Auction, error) {
	if err := im.checkOwner(caller); err != nil {
		return nil, err
	}
	if err := im.checkNew(b, c, assetId, startPrice, endPrice); err != nil {
		return nil, err
	}
	return im.open(b, assetId, 0, startPrice, endPrice, now), nil
}

func (im *impl) active(b *auction.Book, assetId domain.AssetId) (*auction.Auction, error) {
	a := b.ActiveAuction(assetId)
	if a == nil {
		return nil, xerrors.Errorf("asset %s: %w", assetId, domain.ErrAuctionNotActive)
	}
	return a, nil
}

func (im *impl) CurrentPrice(b *auction.Book, assetId domain.AssetId, now time.Time) (*big.Int, error) {
	a, err := im.active(b, assetId)
	if err != nil {
		return nil, err
	}
	return a.PriceAt(now), nil
}

func (im *impl) AcceptBid(b *auction.Book, assetId domain.AssetId, bidder domain.Address, now time.Time) (*auction.Auction, error) {
	if bidder.IsEmpty() {
		return nil, domain.ErrInvalidAddress
	}
	a, err := im.active(b, assetId)
	if err != nil {
		return nil, err
	}
	delete(b.ActiveByAsset, assetId)
	a.Status = auction.AuctionStatusSold
	a.Buyer = bidder.ToLower()
	a.SoldPrice = a.PriceAt(now)
	a.EndedAt = now
	return a, nil
}

func (im *impl) Cancel(b *auction.Book, assetId domain.AssetId, caller domain.Address, now time.Time) (*auction.Auction, error) {
	if err := im.checkOwner(caller); err != nil {
		return nil, err
	}
	a, err := im.active(b, assetId)
	if err != nil {
		return nil, err
	}
	delete(b.ActiveByAsset, assetId)
	a.Status = auction.AuctionStatusCancelled
	a.EndedAt = now
	return a, nil
}

func (im *impl) SetMinSellPrice(b *auction.Book, caller domain.Address, price *big.Int) error {
	if err := im.checkOwner(caller); err != nil {
		return err
	}
	if price == nil || price.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	b.MinSellPrice = new(big.Int).Set(price)
	return nil
}

// SetMaxAuctionDuration applies to auctions started afterwards.
func (im *impl) SetMaxAuctionDuration(b *auction.Book, caller domain.Address, d time.Duration) error {
	if err := im.checkOwner(caller); err != nil {
		return err
	}
	if d <= 0 {
		return xerrors.Errorf("duration %s: %w", d, domain.ErrInvalidAuctionParams)
	}
	b.MaxAuctionDuration = d
	return nil
}
