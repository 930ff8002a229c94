package vault

import (
	"math/big"
	"time"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/curve"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/auction"
	"github.com/x-xyz/nftvault/domain/custody"
	"github.com/x-xyz/nftvault/domain/gateway"
	"github.com/x-xyz/nftvault/domain/share"
)

// Config is fixed for the lifetime of a vault.
type Config struct {
	Address domain.Address
	Owner   domain.Address
	Curve   curve.Params
	// MaxSupply caps the total share supply, nil or zero for uncapped
	MaxSupply *big.Int

	MinSellPrice       *big.Int
	MaxAuctionDuration time.Duration

	RewardPercentage uint64
	AllowList        []domain.Address
	// Protected are targets no external action may call, such as the NFT
	// collection and the asset token
	Protected []domain.Address
}

func (c Config) Validate() error {
	if !c.Address.IsValid() || c.Address.IsEmpty() || !c.Owner.IsValid() || c.Owner.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if !c.Curve.Initialized() {
		return domain.ErrCurveUninitialized
	}
	if c.MaxAuctionDuration <= 0 {
		return domain.ErrInvalidAuctionParams
	}
	if c.RewardPercentage > gateway.MaxRewardPercentage {
		return domain.ErrInvalidRewardPercentage
	}
	for _, a := range c.Protected {
		if !a.IsValid() || a.IsEmpty() {
			return xerrors.Errorf("protected %q: %w", a, domain.ErrInvalidAddress)
		}
	}
	return nil
}

// State is everything a mutation may change. It is cloned before every
// mutation and swapped in as a whole on commit.
type State struct {
	Shares  *share.State
	Book    *auction.Book
	Custody *custody.Registry
	Policy  *gateway.Policy
	// Seq is the sequence number of the last emitted event
	Seq uint64
}

func NewState(cfg Config) *State {
	return &State{
		Shares:  share.NewState(),
		Book:    auction.NewBook(cfg.MinSellPrice, cfg.MaxAuctionDuration),
		Custody: custody.NewRegistry(),
		Policy:  gateway.NewPolicy(cfg.RewardPercentage, cfg.AllowList),
	}
}

func (s *State) Clone() *State {
	return &State{
		Shares:  s.Shares.Clone(),
		Book:    s.Book.Clone(),
		Custody: s.Custody.Clone(),
		Policy:  s.Policy.Clone(),
		Seq:     s.Seq,
	}
}

// Info is the public configuration of a vault.
type Info struct {
	Address            domain.Address   `json:"address"`
	Owner              domain.Address   `json:"owner"`
	K                  string           `json:"k"`
	FeeRate            string           `json:"feeRate"`
	MaxSupply          string           `json:"maxSupply"`
	MinSellPrice       string           `json:"minSellPrice"`
	MaxAuctionDuration time.Duration    `json:"maxAuctionDuration"`
	RewardPercentage   uint64           `json:"rewardPercentage"`
	AllowList          []domain.Address `json:"allowList"`
	Supply             share.Supply     `json:"supply"`
}

// ActionResult is the outcome of an external action.
type ActionResult struct {
	Result []byte   `json:"result"`
	Reward *big.Int `json:"reward"`
}

// RewardError is returned with the ActionResult when the action was committed
// but the reward transfer failed. It matches domain.ErrRewardNotPaid.
type RewardError struct {
	Reward *big.Int
	Err    error
}

func (e *RewardError) Error() string {
	return "reward " + domain.FormatAmount(e.Reward) + " not paid: " + e.Err.Error()
}

func (e *RewardError) Is(target error) bool {
	return target == domain.ErrRewardNotPaid
}

func (e *RewardError) Unwrap() error {
	return e.Err
}

// UseCase is one vault instance. Mutations are serialized; queries read the
// last committed state.
type UseCase interface {
	Mint(ctx ctx.Ctx, payer domain.Address, assetPaid, minTokensOut *big.Int) (*big.Int, error)
	Redeem(ctx ctx.Ctx, holder domain.Address, tokens, minAssetOut *big.Int) (*big.Int, error)
	Lock(ctx ctx.Ctx, holder domain.Address, tokens *big.Int) error
	Transfer(ctx ctx.Ctx, from, to domain.Address, amount *big.Int) error
	Approve(ctx ctx.Ctx, owner, spender domain.Address, amount *big.Int) error
	TransferFrom(ctx ctx.Ctx, spender, from, to domain.Address, amount *big.Int) error

	DepositAsset(ctx ctx.Ctx, assetId domain.AssetId) (*custody.AssetRecord, error)
	WithdrawAsset(ctx ctx.Ctx, caller domain.Address, assetId domain.AssetId, to domain.Address) (*custody.AssetRecord, error)

	Propose(ctx ctx.Ctx, proposer domain.Address, assetId domain.AssetId, startPrice, endPrice *big.Int) (*auction.Proposal, error)
	ApproveProposal(ctx ctx.Ctx, approver domain.Address, proposalId domain.ProposalId) (*auction.Auction, error)
	RejectProposal(ctx ctx.Ctx, approver domain.Address, proposalId domain.ProposalId) (*auction.Proposal, error)
	StartAuction(ctx ctx.Ctx, caller domain.Address, assetId domain.AssetId, startPrice, endPrice *big.Int) (*auction.Auction, error)
	CancelAuction(ctx ctx.Ctx, caller domain.Address, assetId domain.AssetId) (*auction.Auction, error)
	AcceptBid(ctx ctx.Ctx, bidder domain.Address, assetId domain.AssetId) (*auction.Auction, error)
	SetMinSellPrice(ctx ctx.Ctx, caller domain.Address, price *big.Int) error
	SetMaxAuctionDuration(ctx ctx.Ctx, caller domain.Address, d time.Duration) error

	ExecuteExternalAction(ctx ctx.Ctx, caller domain.Address, action gateway.Action) (*ActionResult, error)
	SetRewardPercentage(ctx ctx.Ctx, caller domain.Address, pct uint64) error
	AllowTarget(ctx ctx.Ctx, caller, target domain.Address) error
	DisallowTarget(ctx ctx.Ctx, caller, target domain.Address) error

	PreviewMint(assetAmount *big.Int) (*big.Int, error)
	PreviewRedeem(tokens *big.Int) (*big.Int, error)
	CurrentPrice(assetId domain.AssetId) (*big.Int, error)
	ActiveAuctions() []domain.AssetId
	PendingProposals() []domain.ProposalId
	Proposal(id domain.ProposalId) (*auction.Proposal, error)
	Auction(id domain.AuctionId) (*auction.Auction, error)
	AuctionOf(assetId domain.AssetId) (*auction.Auction, error)
	BalanceOf(account domain.Address) *big.Int
	Allowance(owner, spender domain.Address) *big.Int
	Supply() share.Supply
	Asset(assetId domain.AssetId) (*custody.AssetRecord, error)
	Assets() []domain.AssetId
	Info() Info

	// Close stops accepting mutations and waits for the running one
	Close()
}
