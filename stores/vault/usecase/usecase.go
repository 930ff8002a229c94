package usecase

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/xerrors"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/goroutine"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/auction"
	"github.com/x-xyz/nftvault/domain/custody"
	"github.com/x-xyz/nftvault/domain/gateway"
	"github.com/x-xyz/nftvault/domain/share"
	"github.com/x-xyz/nftvault/domain/vault"
	auctionuc "github.com/x-xyz/nftvault/stores/auction/usecase"
	custodyuc "github.com/x-xyz/nftvault/stores/custody/usecase"
	gatewayuc "github.com/x-xyz/nftvault/stores/gateway/usecase"
	shareuc "github.com/x-xyz/nftvault/stores/share/usecase"
)

type VaultUseCaseCfg struct {
	Vault    vault.Config
	Assets   share.AssetTransfer
	NFT      custody.NFT
	Executor gateway.Executor
	// optional
	Clock   auction.Clock
	Sink    vault.EventSink
	Metrics metrics.Service
}

type impl struct {
	cfg vault.Config

	shareUC   share.UseCase
	auctionUC auction.UseCase
	custodyUC custody.UseCase
	gatewayUC gateway.UseCase

	assets   share.AssetTransfer
	nft      custody.NFT
	executor gateway.Executor
	clock    auction.Clock
	sink     vault.EventSink
	met      metrics.Service

	snapshot  atomic.Value
	reqs      chan *request
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type nopSink struct{}

func (nopSink) Publish(bCtx.Ctx, ...vault.Event) {}

// New starts the writer of a vault. Close stops it.
func New(cfg *VaultUseCaseCfg) (vault.UseCase, error) {
	if err := cfg.Vault.Validate(); err != nil {
		return nil, err
	}
	if cfg.Assets == nil || cfg.NFT == nil || cfg.Executor == nil {
		return nil, xerrors.Errorf("missing rail: %w", domain.ErrBadParamInput)
	}
	vc := cfg.Vault
	vc.Address = vc.Address.ToLower()
	vc.Owner = vc.Owner.ToLower()

	im := &impl{
		cfg:       vc,
		shareUC:   shareuc.New(vc.Curve, vc.MaxSupply),
		auctionUC: auctionuc.New(vc.Owner),
		custodyUC: custodyuc.New(vc.Address),
		gatewayUC: gatewayuc.New(vc.Address, vc.Owner, vc.Protected...),
		assets:    cfg.Assets,
		nft:       cfg.NFT,
		executor:  cfg.Executor,
		clock:     cfg.Clock,
		sink:      cfg.Sink,
		met:       cfg.Metrics,
		reqs:      make(chan *request),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if im.clock == nil {
		im.clock = auction.SystemClock{}
	}
	if im.sink == nil {
		im.sink = nopSink{}
	}
	if im.met == nil {
		im.met = metrics.New("vault")
	}
	im.snapshot.Store(vault.NewState(vc))

	goroutine.RecoverableGo(im.loop,
		goroutine.WithName("vault:"+string(vc.Address)),
		goroutine.WithAfterEnded(func() { close(im.stopped) }),
	)
	return im, nil
}

func (im *impl) Close() {
	im.closeOnce.Do(func() { close(im.quit) })
	<-im.stopped
}

func (im *impl) load() *vault.State {
	return im.snapshot.Load().(*vault.State)
}

func (im *impl) checkOwner(caller domain.Address) error {
	if !caller.Equals(im.cfg.Owner) {
		return xerrors.Errorf("%s is not the owner: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

func (im *impl) Mint(c bCtx.Ctx, payer domain.Address, assetPaid, minTokensOut *big.Int) (*big.Int, error) {
	var tokens *big.Int
	err := im.submit(c, "mint", func(t *txn) error {
		var err error
		if tokens, err = im.shareUC.Mint(t.state.Shares, payer, assetPaid, minTokensOut); err != nil {
			return err
		}
		t.effect(func() error {
			rcpt, err := im.assets.TransferIn(t.ctx, payer, assetPaid)
			if err != nil {
				return err
			}
			t.emit(vault.Event{
				Type:    vault.EventMinted,
				Account: payer.ToLower(),
				Tokens:  vault.Amount(tokens),
				Assets:  vault.Amount(assetPaid),
				Ref:     rcpt.Ref,
			})
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (im *impl) Redeem(c bCtx.Ctx, holder domain.Address, tokens, minAssetOut *big.Int) (*big.Int, error) {
	var assetOut *big.Int
	err := im.submit(c, "redeem", func(t *txn) error {
		backing, err := im.assets.BalanceOf(t.ctx, im.cfg.Address)
		if err != nil {
			return err
		}
		if assetOut, err = im.shareUC.Redeem(t.state.Shares, holder, tokens, minAssetOut, backing); err != nil {
			return err
		}
		t.effect(func() error {
			rcpt, err := im.assets.TransferOut(t.ctx, holder, assetOut)
			if err != nil {
				return err
			}
			t.emit(vault.Event{
				Type:    vault.EventRedeemed,
				Account: holder.ToLower(),
				Tokens:  vault.Amount(tokens),
				Assets:  vault.Amount(assetOut),
				Ref:     rcpt.Ref,
			})
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assetOut, nil
}

func (im *impl) Lock(c bCtx.Ctx, holder domain.Address, tokens *big.Int) error {
	return im.submit(c, "lock", func(t *txn) error {
		if err := im.shareUC.Lock(t.state.Shares, holder, tokens); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventLocked,
			Account: holder.ToLower(),
			Tokens:  vault.Amount(tokens),
		})
		return nil
	})
}

func transferEvent(from, to domain.Address, amount *big.Int) vault.Event {
	if to.Equals(domain.SinkAddress) {
		return vault.Event{
			Type:    vault.EventLocked,
			Account: from.ToLower(),
			Tokens:  vault.Amount(amount),
		}
	}
	return vault.Event{
		Type:    vault.EventTransferred,
		Account: from.ToLower(),
		To:      to.ToLower(),
		Tokens:  vault.Amount(amount),
	}
}

func (im *impl) Transfer(c bCtx.Ctx, from, to domain.Address, amount *big.Int) error {
	return im.submit(c, "transfer", func(t *txn) error {
		if err := im.shareUC.Transfer(t.state.Shares, from, to, amount); err != nil {
			return err
		}
		t.emit(transferEvent(from, to, amount))
		return nil
	})
}

func (im *impl) Approve(c bCtx.Ctx, owner, spender domain.Address, amount *big.Int) error {
	return im.submit(c, "approve", func(t *txn) error {
		if err := im.shareUC.Approve(t.state.Shares, owner, spender, amount); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventApproval,
			Account: owner.ToLower(),
			To:      spender.ToLower(),
			Tokens:  vault.Amount(amount),
		})
		return nil
	})
}

func (im *impl) TransferFrom(c bCtx.Ctx, spender, from, to domain.Address, amount *big.Int) error {
	return im.submit(c, "transferFrom", func(t *txn) error {
		if err := im.shareUC.TransferFrom(t.state.Shares, spender, from, to, amount); err != nil {
			return err
		}
		t.emit(transferEvent(from, to, amount))
		return nil
	})
}

func (im *impl) DepositAsset(c bCtx.Ctx, assetId domain.AssetId) (*custody.AssetRecord, error) {
	var rec custody.AssetRecord
	err := im.submit(c, "depositAsset", func(t *txn) error {
		owner, err := im.nft.OwnerOf(t.ctx, assetId)
		if err != nil {
			return err
		}
		r, err := im.custodyUC.Deposit(t.state.Custody, assetId, owner, t.now)
		if err != nil {
			return err
		}
		rec = *r
		t.emit(vault.Event{Type: vault.EventAssetDeposited}.WithAsset(assetId))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (im *impl) WithdrawAsset(c bCtx.Ctx, caller domain.Address, assetId domain.AssetId, to domain.Address) (*custody.AssetRecord, error) {
	var rec custody.AssetRecord
	err := im.submit(c, "withdrawAsset", func(t *txn) error {
		if err := im.checkOwner(caller); err != nil {
			return err
		}
		r, err := im.custodyUC.Release(t.state.Custody, assetId, to, t.state.Book.IsAssetLocked(assetId), t.now)
		if err != nil {
			return err
		}
		rec = *r
		t.effect(func() error {
			if err := im.nft.Transfer(t.ctx, assetId, to); err != nil {
				return err
			}
			t.emit(vault.Event{
				Type:    vault.EventAssetWithdrawn,
				Account: caller.ToLower(),
				To:      to.ToLower(),
			}.WithAsset(assetId))
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func auctionStarted(a *auction.Auction) vault.Event {
	return vault.Event{
		Type:       vault.EventAuctionStarted,
		ProposalId: a.ProposalId,
		AuctionId:  a.Id,
		StartPrice: vault.Amount(a.StartPrice),
		EndPrice:   vault.Amount(a.EndPrice),
	}.WithAsset(a.AssetId)
}

func (im *impl) Propose(c bCtx.Ctx, proposer domain.Address, assetId domain.AssetId, startPrice, endPrice *big.Int) (*auction.Proposal, error) {
	var p *auction.Proposal
	err := im.submit(c, "propose", func(t *txn) error {
		var err error
		if p, err = im.auctionUC.Propose(t.state.Book, t.state.Custody, assetId, startPrice, endPrice, proposer, t.now); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:       vault.EventProposalSubmitted,
			Account:    p.Proposer,
			ProposalId: p.Id,
			StartPrice: vault.Amount(p.StartPrice),
			EndPrice:   vault.Amount(p.EndPrice),
		}.WithAsset(assetId))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (im *impl) ApproveProposal(c bCtx.Ctx, approver domain.Address, proposalId domain.ProposalId) (*auction.Auction, error) {
	var a *auction.Auction
	err := im.submit(c, "approveProposal", func(t *txn) error {
		p, created, err := im.auctionUC.Approve(t.state.Book, proposalId, approver, t.now)
		if err != nil {
			return err
		}
		a = created
		t.emit(vault.Event{
			Type:       vault.EventProposalApproved,
			Account:    approver.ToLower(),
			ProposalId: p.Id,
			AuctionId:  a.Id,
		}.WithAsset(p.AssetId))
		t.emit(auctionStarted(a))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (im *impl) RejectProposal(c bCtx.Ctx, approver domain.Address, proposalId domain.ProposalId) (*auction.Proposal, error) {
	var p *auction.Proposal
	err := im.submit(c, "rejectProposal", func(t *txn) error {
		var err error
		if p, err = im.auctionUC.Reject(t.state.Book, proposalId, approver, t.now); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:       vault.EventProposalRejected,
			Account:    approver.ToLower(),
			ProposalId: p.Id,
		}.WithAsset(p.AssetId))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (im *impl) StartAuction(c bCtx.Ctx, caller domain.Address, assetId domain.AssetId, startPrice, endPrice *big.Int) (*auction.Auction, error) {
	var a *auction.Auction
	err := im.submit(c, "startAuction", func(t *txn) error {
		var err error
		if a, err = im.auctionUC.StartDirect(t.state.Book, t.state.Custody, assetId, startPrice, endPrice, caller, t.now); err != nil {
			return err
		}
		t.emit(auctionStarted(a))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (im *impl) CancelAuction(c bCtx.Ctx, caller domain.Address, assetId domain.AssetId) (*auction.Auction, error) {
	var a *auction.Auction
	err := im.submit(c, "cancelAuction", func(t *txn) error {
		var err error
		if a, err = im.auctionUC.Cancel(t.state.Book, assetId, caller, t.now); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:      vault.EventAuctionCancelled,
			Account:   caller.ToLower(),
			AuctionId: a.Id,
		}.WithAsset(assetId))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

// AcceptBid sells the asset to bidder at the current price. The bidder must
// hold the price in shares and have approved the vault to lock them. The NFT
// transfer is the only external call, so either both legs happen or neither.
func (im *impl) AcceptBid(c bCtx.Ctx, bidder domain.Address, assetId domain.AssetId) (*auction.Auction, error) {
	var a *auction.Auction
	err := im.submit(c, "acceptBid", func(t *txn) error {
		var err error
		if a, err = im.auctionUC.AcceptBid(t.state.Book, assetId, bidder, t.now); err != nil {
			return err
		}
		if err := im.shareUC.LockFrom(t.state.Shares, im.cfg.Address, bidder, a.SoldPrice); err != nil {
			return err
		}
		if _, err := im.custodyUC.Settle(t.state.Custody, assetId, bidder, t.now); err != nil {
			return err
		}
		t.effect(func() error {
			if err := im.nft.Transfer(t.ctx, assetId, bidder); err != nil {
				return err
			}
			t.emit(vault.Event{
				Type:      vault.EventBidAccepted,
				Account:   bidder.ToLower(),
				AuctionId: a.Id,
				Price:     vault.Amount(a.SoldPrice),
			}.WithAsset(assetId))
			t.emit(vault.Event{
				Type:    vault.EventLocked,
				Account: bidder.ToLower(),
				Tokens:  vault.Amount(a.SoldPrice),
			})
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (im *impl) SetMinSellPrice(c bCtx.Ctx, caller domain.Address, price *big.Int) error {
	return im.submit(c, "setMinSellPrice", func(t *txn) error {
		if err := im.auctionUC.SetMinSellPrice(t.state.Book, caller, price); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventParamsUpdated,
			Account: caller.ToLower(),
			Params:  map[string]string{"minSellPrice": vault.Amount(price)},
		})
		return nil
	})
}

func (im *impl) SetMaxAuctionDuration(c bCtx.Ctx, caller domain.Address, d time.Duration) error {
	return im.submit(c, "setMaxAuctionDuration", func(t *txn) error {
		if err := im.auctionUC.SetMaxAuctionDuration(t.state.Book, caller, d); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventParamsUpdated,
			Account: caller.ToLower(),
			Params:  map[string]string{"maxAuctionDuration": d.String()},
		})
		return nil
	})
}
