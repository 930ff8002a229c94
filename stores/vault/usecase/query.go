package usecase

import (
	"math/big"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/auction"
	"github.com/x-xyz/nftvault/domain/custody"
	"github.com/x-xyz/nftvault/domain/share"
	"github.com/x-xyz/nftvault/domain/vault"
)

// Queries read the last committed snapshot, which is never written again.

func (im *impl) PreviewMint(assetAmount *big.Int) (*big.Int, error) {
	return im.shareUC.PreviewMint(im.load().Shares, assetAmount)
}

func (im *impl) PreviewRedeem(tokens *big.Int) (*big.Int, error) {
	return im.shareUC.PreviewRedeem(im.load().Shares, tokens)
}

func (im *impl) CurrentPrice(assetId domain.AssetId) (*big.Int, error) {
	return im.auctionUC.CurrentPrice(im.load().Book, assetId, im.clock.Now())
}

func (im *impl) ActiveAuctions() []domain.AssetId {
	return im.load().Book.ActiveAssets()
}

func (im *impl) PendingProposals() []domain.ProposalId {
	return im.load().Book.PendingProposals()
}

func (im *impl) Proposal(id domain.ProposalId) (*auction.Proposal, error) {
	p, ok := im.load().Book.Proposals[id]
	if !ok {
		return nil, xerrors.Errorf("proposal %d: %w", id, domain.ErrNoSuchProposal)
	}
	return p.Clone(), nil
}

func (im *impl) Auction(id domain.AuctionId) (*auction.Auction, error) {
	a, ok := im.load().Book.Auctions[id]
	if !ok {
		return nil, xerrors.Errorf("auction %d: %w", id, domain.ErrNotFound)
	}
	return a.Clone(), nil
}

func (im *impl) AuctionOf(assetId domain.AssetId) (*auction.Auction, error) {
	a := im.load().Book.ActiveAuction(assetId)
	if a == nil {
		return nil, xerrors.Errorf("asset %s: %w", assetId, domain.ErrAuctionNotActive)
	}
	return a.Clone(), nil
}

func (im *impl) BalanceOf(account domain.Address) *big.Int {
	return im.load().Shares.BalanceOf(account)
}

func (im *impl) Allowance(owner, spender domain.Address) *big.Int {
	return im.load().Shares.Allowance(owner, spender)
}

func (im *impl) Supply() share.Supply {
	return im.load().Shares.Supply()
}

func (im *impl) Asset(assetId domain.AssetId) (*custody.AssetRecord, error) {
	rec, ok := im.load().Custody.Record(assetId)
	if !ok {
		return nil, xerrors.Errorf("asset %s: %w", assetId, domain.ErrNotFound)
	}
	return &rec, nil
}

func (im *impl) Assets() []domain.AssetId {
	return im.load().Custody.Assets()
}

func (im *impl) Info() vault.Info {
	st := im.load()
	maxSupply := "0"
	if im.cfg.MaxSupply != nil {
		maxSupply = domain.FormatAmount(im.cfg.MaxSupply)
	}
	return vault.Info{
		Address:            im.cfg.Address,
		Owner:              im.cfg.Owner,
		K:                  domain.FormatAmount(im.cfg.Curve.K),
		FeeRate:            domain.FormatAmount(im.cfg.Curve.FeeRate),
		MaxSupply:          maxSupply,
		MinSellPrice:       domain.FormatAmount(st.Book.MinSellPrice),
		MaxAuctionDuration: st.Book.MaxAuctionDuration,
		RewardPercentage:   st.Policy.RewardPercentage,
		AllowList:          st.Policy.Targets(),
		Supply:             st.Shares.Supply(),
	}
}
