package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/curve"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/auction"
	"github.com/x-xyz/nftvault/domain/gateway"
	"github.com/x-xyz/nftvault/domain/share"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/service/rail/memory"
)

func addr(n int) domain.Address {
	return domain.Address(fmt.Sprintf("0x%040x", n))
}

func amt(s string) *big.Int {
	return domain.MustParseAmount(s)
}

var (
	vaultAddr = addr(0x7a017)
	owner     = addr(0x0a)
	alice     = addr(0xa11ce)
	bob       = addr(0xb0b)
	keeper    = addr(0x4ee9)
	market    = addr(0xcc)
	nfts      = addr(0xee)

	errBoom = errors.New("boom")
)

const maxDuration = 7 * 24 * time.Hour

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordSink struct {
	mu     sync.Mutex
	events []vault.Event
}

func (r *recordSink) Publish(_ bCtx.Ctx, events ...vault.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordSink) types() []vault.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := []vault.EventType{}
	for _, e := range r.events {
		res = append(res, e.Type)
	}
	return res
}

func (r *recordSink) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type vaultSuite struct {
	suite.Suite

	ctx    bCtx.Ctx
	clock  *fakeClock
	sink   *recordSink
	ledger *memory.Ledger
	nft    *memory.Collection
	exec   *memory.Executor
	im     *impl
}

func TestVaultSuite(t *testing.T) {
	suite.Run(t, new(vaultSuite))
}

func (s *vaultSuite) config() vault.Config {
	params, err := curve.ParseParams("0.0001", "0.1")
	s.Require().NoError(err)
	return vault.Config{
		Address:            vaultAddr,
		Owner:              owner,
		Curve:              params,
		MinSellPrice:       amt("0.1"),
		MaxAuctionDuration: maxDuration,
		RewardPercentage:   5,
		Protected:          []domain.Address{nfts},
	}
}

func (s *vaultSuite) SetupTest() {
	s.ctx = bCtx.Background()
	s.clock = &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	s.sink = &recordSink{}
	s.ledger = memory.NewLedger(vaultAddr)
	s.ledger.Fund(alice, amt("100"))
	s.ledger.Fund(bob, amt("100"))
	s.nft = memory.NewCollection(vaultAddr)
	s.nft.Mint(7, vaultAddr)
	s.nft.Mint(8, vaultAddr)
	s.nft.Mint(9, bob)
	s.exec = memory.NewExecutor(s.ledger)

	uc, err := New(&VaultUseCaseCfg{
		Vault:    s.config(),
		Assets:   s.ledger,
		NFT:      s.nft,
		Executor: s.exec,
		Clock:    s.clock,
		Sink:     s.sink,
		Metrics:  metrics.Nop(),
	})
	s.Require().NoError(err)
	s.im = uc.(*impl)
}

func (s *vaultSuite) TearDownTest() {
	s.im.Close()
}

func (s *vaultSuite) backing() *big.Int {
	bal, err := s.ledger.BalanceOf(s.ctx, vaultAddr)
	s.Require().NoError(err)
	return bal
}

func (s *vaultSuite) mint(who domain.Address, asset string) *big.Int {
	tokens, err := s.im.Mint(s.ctx, who, amt(asset), nil)
	s.Require().NoError(err)
	return tokens
}

func (s *vaultSuite) auctionOn7() *auction.Auction {
	_, err := s.im.DepositAsset(s.ctx, 7)
	s.Require().NoError(err)
	p, err := s.im.Propose(s.ctx, bob, 7, amt("0.11"), amt("0.10"))
	s.Require().NoError(err)
	a, err := s.im.ApproveProposal(s.ctx, owner, p.Id)
	s.Require().NoError(err)
	return a
}

func (s *vaultSuite) TestNewValidates() {
	cfg := s.config()
	cfg.Curve.K = big.NewInt(0)
	_, err := New(&VaultUseCaseCfg{Vault: cfg, Assets: s.ledger, NFT: s.nft, Executor: s.exec})
	s.ErrorIs(err, domain.ErrCurveUninitialized)

	cfg = s.config()
	cfg.RewardPercentage = gateway.MaxRewardPercentage + 1
	_, err = New(&VaultUseCaseCfg{Vault: cfg, Assets: s.ledger, NFT: s.nft, Executor: s.exec})
	s.ErrorIs(err, domain.ErrInvalidRewardPercentage)

	_, err = New(&VaultUseCaseCfg{Vault: s.config()})
	s.ErrorIs(err, domain.ErrBadParamInput)
}

func (s *vaultSuite) TestMintRedeemRoundTrip() {
	tokens := s.mint(alice, "1")
	s.Equal(1, tokens.Cmp(amt("30.1")))
	s.Equal(-1, tokens.Cmp(amt("30.11")))
	s.Equal(0, amt("1").Cmp(s.backing()))
	s.Equal(0, tokens.Cmp(s.im.BalanceOf(alice)))

	preview, err := s.im.PreviewRedeem(tokens)
	s.NoError(err)
	out, err := s.im.Redeem(s.ctx, alice, tokens, preview)
	s.NoError(err)
	s.Equal(0, preview.Cmp(out))
	s.True(out.Cmp(amt("1")) <= 0)
	s.Equal(0, s.im.Supply().Total.Sign())
	s.Equal(0, new(big.Int).Sub(amt("1"), out).Cmp(s.backing()))
	s.Equal([]vault.EventType{vault.EventMinted, vault.EventRedeemed}, s.sink.types())

	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	s.Equal(uint64(1), s.sink.events[0].Seq)
	s.Equal(uint64(2), s.sink.events[1].Seq)
	s.Equal(vaultAddr, s.sink.events[0].Vault)
	s.NotEmpty(s.sink.events[0].Id)
	s.Equal(vault.Amount(tokens), s.sink.events[0].Tokens)
}

func (s *vaultSuite) TestMintRailFailureLeavesNoTrace() {
	s.ledger.FailNext(memory.OpTransferIn, errBoom)
	_, err := s.im.Mint(s.ctx, alice, amt("1"), nil)
	s.ErrorIs(err, errBoom)

	_, err = s.im.Mint(s.ctx, keeper, amt("1"), nil)
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	s.Equal(0, s.im.Supply().Total.Sign())
	s.Equal(0, s.im.BalanceOf(alice).Sign())
	s.Equal(0, s.backing().Sign())
	s.Empty(s.sink.types())
}

func (s *vaultSuite) TestSlippage() {
	preview, err := s.im.PreviewMint(amt("1"))
	s.NoError(err)
	_, err = s.im.Mint(s.ctx, alice, amt("1"), new(big.Int).Add(preview, domain.Big1))
	s.ErrorIs(err, domain.ErrSlippageExceeded)
	s.Equal(0, s.backing().Sign())

	tokens := s.mint(alice, "1")
	_, err = s.im.Redeem(s.ctx, alice, tokens, amt("1"))
	s.ErrorIs(err, domain.ErrSlippageExceeded)
	s.Equal(0, tokens.Cmp(s.im.BalanceOf(alice)))
}

func (s *vaultSuite) TestRedeemUnderBacked() {
	tokens := s.mint(alice, "1")

	// the backing leaves the vault outside of any vault operation
	_, err := s.ledger.TransferOut(s.ctx, market, s.backing())
	s.Require().NoError(err)
	s.Equal(0, s.backing().Sign())
	s.sink.reset()

	before := s.im.load()
	_, err = s.im.Redeem(s.ctx, alice, tokens, nil)
	s.ErrorIs(err, domain.ErrInsufficientBacking)
	s.Equal(before, s.im.load())
	s.Equal(0, tokens.Cmp(s.im.BalanceOf(alice)))
	s.Equal(0, tokens.Cmp(s.im.Supply().Total))
	s.Empty(s.sink.types())
}

func (s *vaultSuite) TestRedeemRailFailure() {
	tokens := s.mint(alice, "1")
	s.ledger.FailNext(memory.OpTransferOut, errBoom)
	_, err := s.im.Redeem(s.ctx, alice, tokens, nil)
	s.ErrorIs(err, errBoom)
	s.Equal(0, tokens.Cmp(s.im.BalanceOf(alice)))
	s.Equal(0, amt("1").Cmp(s.backing()))
}

func (s *vaultSuite) TestLockAndTransfer() {
	tokens := s.mint(alice, "1")
	third := new(big.Int).Quo(tokens, domain.Big3)

	s.NoError(s.im.Lock(s.ctx, alice, third))
	s.NoError(s.im.Transfer(s.ctx, alice, bob, third))
	s.NoError(s.im.Transfer(s.ctx, bob, domain.SinkAddress, third))

	supply := s.im.Supply()
	s.Equal(0, tokens.Cmp(supply.Total))
	s.Equal(0, new(big.Int).Mul(third, big.NewInt(2)).Cmp(supply.Locked))
	s.Equal(0, supply.Locked.Cmp(s.im.BalanceOf(domain.SinkAddress)))
	s.ErrorIs(s.im.Transfer(s.ctx, domain.SinkAddress, bob, domain.Big1), domain.ErrSinkTransfer)

	s.NoError(s.im.Approve(s.ctx, alice, bob, third))
	s.Equal(0, third.Cmp(s.im.Allowance(alice, bob)))
	s.NoError(s.im.TransferFrom(s.ctx, bob, alice, bob, third))
	s.ErrorIs(s.im.TransferFrom(s.ctx, bob, alice, bob, domain.Big1), domain.ErrInsufficientAllowance)

	s.Equal([]vault.EventType{
		vault.EventMinted,
		vault.EventLocked,
		vault.EventTransferred,
		vault.EventLocked,
		vault.EventApproval,
		vault.EventTransferred,
	}, s.sink.types())
}

func (s *vaultSuite) TestAuctionLifecycle() {
	tokens := s.mint(alice, "1")
	a := s.auctionOn7()
	s.Equal([]domain.AssetId{7}, s.im.ActiveAuctions())
	s.Empty(s.im.PendingProposals())

	price, err := s.im.CurrentPrice(7)
	s.NoError(err)
	s.Equal(0, amt("0.11").Cmp(price))

	s.clock.Advance(maxDuration)
	price, err = s.im.CurrentPrice(7)
	s.NoError(err)
	s.Equal(0, amt("0.10").Cmp(price))

	_, err = s.im.AcceptBid(s.ctx, bob, 7)
	s.ErrorIs(err, domain.ErrInsufficientBalance)
	_, err = s.im.AcceptBid(s.ctx, alice, 7)
	s.ErrorIs(err, domain.ErrInsufficientAllowance)
	s.Equal([]domain.AssetId{7}, s.im.ActiveAuctions())

	s.NoError(s.im.Approve(s.ctx, alice, vaultAddr, amt("0.10")))
	sold, err := s.im.AcceptBid(s.ctx, alice, 7)
	s.NoError(err)
	s.Equal(a.Id, sold.Id)
	s.Equal(auction.AuctionStatusSold, sold.Status)
	s.Equal(0, amt("0.10").Cmp(sold.SoldPrice))

	owner7, err := s.nft.OwnerOf(s.ctx, 7)
	s.NoError(err)
	s.Equal(alice, owner7)
	s.Equal(0, amt("0.10").Cmp(s.im.Supply().Locked))
	s.Equal(0, new(big.Int).Sub(tokens, amt("0.10")).Cmp(s.im.BalanceOf(alice)))
	s.Empty(s.im.ActiveAuctions())
	s.NotContains(s.im.Assets(), domain.AssetId(7))

	rec, err := s.im.Asset(7)
	s.NoError(err)
	s.False(rec.InCustody)
	s.Equal(alice, rec.ReleasedTo)

	stored, err := s.im.Auction(a.Id)
	s.NoError(err)
	s.Equal(auction.AuctionStatusSold, stored.Status)

	_, err = s.im.AcceptBid(s.ctx, alice, 7)
	s.ErrorIs(err, domain.ErrAuctionNotActive)

	s.Equal([]vault.EventType{
		vault.EventMinted,
		vault.EventAssetDeposited,
		vault.EventProposalSubmitted,
		vault.EventProposalApproved,
		vault.EventAuctionStarted,
		vault.EventApproval,
		vault.EventBidAccepted,
		vault.EventLocked,
	}, s.sink.types())
}

func (s *vaultSuite) TestAcceptBidIsAtomic() {
	s.mint(alice, "1")
	s.auctionOn7()
	s.NoError(s.im.Approve(s.ctx, alice, vaultAddr, amt("1")))
	before := s.im.load()
	events := len(s.sink.types())

	s.nft.FailNext(memory.OpNFTTransfer, errBoom)
	_, err := s.im.AcceptBid(s.ctx, alice, 7)
	s.ErrorIs(err, errBoom)

	s.Equal(before, s.im.load())
	s.Equal(0, s.im.Supply().Locked.Sign())
	s.Equal([]domain.AssetId{7}, s.im.ActiveAuctions())
	s.Contains(s.im.Assets(), domain.AssetId(7))
	s.Len(s.sink.types(), events)

	_, err = s.im.AcceptBid(s.ctx, alice, 7)
	s.NoError(err)
}

func (s *vaultSuite) TestProposalRules() {
	_, err := s.im.Propose(s.ctx, bob, 7, amt("0.11"), amt("0.10"))
	s.ErrorIs(err, domain.ErrNFTNotOwned)

	_, err = s.im.DepositAsset(s.ctx, 9)
	s.ErrorIs(err, domain.ErrAssetNotInCustody)
	_, err = s.im.DepositAsset(s.ctx, 7)
	s.NoError(err)
	_, err = s.im.DepositAsset(s.ctx, 7)
	s.ErrorIs(err, domain.ErrAssetAlreadyInCustody)

	p, err := s.im.Propose(s.ctx, bob, 7, amt("0.11"), amt("0.10"))
	s.NoError(err)
	_, err = s.im.Propose(s.ctx, alice, 7, amt("0.11"), amt("0.10"))
	s.ErrorIs(err, domain.ErrProposalAlreadyExists)
	s.Equal([]domain.ProposalId{p.Id}, s.im.PendingProposals())

	_, err = s.im.ApproveProposal(s.ctx, bob, p.Id)
	s.ErrorIs(err, domain.ErrUnauthorized)
	rejected, err := s.im.RejectProposal(s.ctx, owner, p.Id)
	s.NoError(err)
	s.Equal(auction.ProposalStatusRejected, rejected.Status)

	stored, err := s.im.Proposal(p.Id)
	s.NoError(err)
	s.Equal(auction.ProposalStatusRejected, stored.Status)
	_, err = s.im.Proposal(99)
	s.True(domain.IsNotFound(err))

	a, err := s.im.StartAuction(s.ctx, owner, 7, amt("0.5"), amt("0.2"))
	s.NoError(err)
	got, err := s.im.AuctionOf(7)
	s.NoError(err)
	s.Equal(a.Id, got.Id)

	cancelled, err := s.im.CancelAuction(s.ctx, owner, 7)
	s.NoError(err)
	s.Equal(auction.AuctionStatusCancelled, cancelled.Status)
	_, err = s.im.AuctionOf(7)
	s.ErrorIs(err, domain.ErrAuctionNotActive)
	s.Contains(s.im.Assets(), domain.AssetId(7))
}

func (s *vaultSuite) TestWithdrawAsset() {
	_, err := s.im.DepositAsset(s.ctx, 7)
	s.NoError(err)
	p, err := s.im.Propose(s.ctx, bob, 7, amt("0.11"), amt("0.10"))
	s.NoError(err)

	_, err = s.im.WithdrawAsset(s.ctx, bob, 7, bob)
	s.ErrorIs(err, domain.ErrUnauthorized)
	_, err = s.im.WithdrawAsset(s.ctx, owner, 7, owner)
	s.ErrorIs(err, domain.ErrAssetLocked)

	_, err = s.im.RejectProposal(s.ctx, owner, p.Id)
	s.NoError(err)
	rec, err := s.im.WithdrawAsset(s.ctx, owner, 7, owner)
	s.NoError(err)
	s.False(rec.InCustody)

	holder, err := s.nft.OwnerOf(s.ctx, 7)
	s.NoError(err)
	s.Equal(owner, holder)
	_, err = s.im.WithdrawAsset(s.ctx, owner, 7, owner)
	s.ErrorIs(err, domain.ErrAssetNotInCustody)
}

// surplus locks all of alice's shares, so nothing is left to redeem and the
// whole backing may be spent
func (s *vaultSuite) surplus(asset string) {
	tokens := s.mint(alice, asset)
	s.Require().NoError(s.im.Lock(s.ctx, alice, tokens))
	s.Require().NoError(s.im.AllowTarget(s.ctx, owner, market))
	s.sink.reset()
}

func (s *vaultSuite) TestExternalAction() {
	s.surplus("2")

	_, err := s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: vaultAddr, Value: amt("1")})
	s.ErrorIs(err, domain.ErrSelfCall)
	_, err = s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: market, Value: amt("1.95")})
	s.ErrorIs(err, domain.ErrInsufficientBacking)
	s.Empty(s.exec.Calls())

	res, err := s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: market, Value: amt("1"), Payload: []byte{0xab}})
	s.NoError(err)
	s.Equal(0, amt("0.05").Cmp(res.Reward))
	s.Len(s.exec.Calls(), 1)

	paid, err := s.ledger.BalanceOf(s.ctx, keeper)
	s.NoError(err)
	s.Equal(0, amt("0.05").Cmp(paid))
	s.Equal(0, amt("0.95").Cmp(s.backing()))

	res, err = s.im.ExecuteExternalAction(s.ctx, owner, gateway.Action{Target: market, Value: amt("0.1")})
	s.NoError(err)
	s.Equal(0, res.Reward.Sign())

	s.Equal([]vault.EventType{
		vault.EventExternalActionExecuted,
		vault.EventRewardPaid,
		vault.EventExternalActionExecuted,
	}, s.sink.types())
}

func (s *vaultSuite) TestKeeperCannotDrainBacking() {
	tokens := s.mint(alice, "1")
	_, err := s.im.DepositAsset(s.ctx, 7)
	s.Require().NoError(err)
	s.sink.reset()

	// without an allow-list a keeper cannot even name itself
	_, err = s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: keeper, Value: amt("0.95")})
	s.ErrorIs(err, domain.ErrInvalidTarget)

	s.Require().NoError(s.im.AllowTarget(s.ctx, owner, market))
	s.sink.reset()
	_, err = s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: market, Value: amt("0.95")})
	s.ErrorIs(err, domain.ErrInsufficientBacking)
	_, err = s.im.ExecuteExternalAction(s.ctx, owner, gateway.Action{Target: market, Value: amt("0.5")})
	s.ErrorIs(err, domain.ErrInsufficientBacking)

	// the collection is off limits even for the owner
	_, err = s.im.ExecuteExternalAction(s.ctx, owner, gateway.Action{Target: nfts})
	s.ErrorIs(err, domain.ErrInvalidTarget)
	s.ErrorIs(s.im.AllowTarget(s.ctx, owner, nfts), domain.ErrInvalidTarget)

	s.Empty(s.exec.Calls())
	s.Empty(s.sink.types())
	holder, err := s.nft.OwnerOf(s.ctx, 7)
	s.NoError(err)
	s.Equal(vaultAddr, holder)

	out, err := s.im.Redeem(s.ctx, alice, tokens, nil)
	s.NoError(err)
	s.True(out.Cmp(amt("1")) <= 0)
	s.True(out.Cmp(amt("0.99")) > 0)
}

func (s *vaultSuite) TestRewardFailureKeepsExecutedAction() {
	s.surplus("2")

	s.ledger.FailNext(memory.OpTransferOut, errBoom)
	res, err := s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: market, Value: amt("1")})
	s.ErrorIs(err, errBoom)
	s.ErrorIs(err, domain.ErrRewardNotPaid)
	var rerr *vault.RewardError
	s.Require().True(errors.As(err, &rerr))
	s.Equal(0, amt("0.05").Cmp(rerr.Reward))

	s.NotNil(res)
	s.Equal(0, res.Reward.Sign())
	s.Len(s.exec.Calls(), 1)
	s.Equal([]vault.EventType{vault.EventExternalActionExecuted}, s.sink.types())

	// a failed action is not a reward failure
	s.exec.FailNext(memory.OpExecute, errBoom)
	_, err = s.im.ExecuteExternalAction(s.ctx, keeper, gateway.Action{Target: market, Value: amt("0.1")})
	s.ErrorIs(err, errBoom)
	s.False(errors.Is(err, domain.ErrRewardNotPaid))
}

func (s *vaultSuite) TestParams() {
	s.ErrorIs(s.im.SetRewardPercentage(s.ctx, alice, 1), domain.ErrUnauthorized)
	s.ErrorIs(s.im.SetRewardPercentage(s.ctx, owner, 6), domain.ErrInvalidRewardPercentage)
	s.NoError(s.im.SetRewardPercentage(s.ctx, owner, 2))
	s.NoError(s.im.AllowTarget(s.ctx, owner, market))
	s.NoError(s.im.SetMinSellPrice(s.ctx, owner, amt("0.2")))
	s.NoError(s.im.SetMaxAuctionDuration(s.ctx, owner, time.Hour))

	info := s.im.Info()
	s.Equal(uint64(2), info.RewardPercentage)
	s.Equal([]domain.Address{market}, info.AllowList)
	s.Equal("0.2", info.MinSellPrice)
	s.Equal(time.Hour, info.MaxAuctionDuration)
	s.Equal("0.0001", info.K)
	s.Equal("0.1", info.FeeRate)

	_, err := s.im.ExecuteExternalAction(s.ctx, owner, gateway.Action{Target: bob})
	s.ErrorIs(err, domain.ErrInvalidTarget)
	s.NoError(s.im.DisallowTarget(s.ctx, owner, market))
	_, err = s.im.ExecuteExternalAction(s.ctx, owner, gateway.Action{Target: bob})
	s.NoError(err)
}

type ctxProbe struct {
	*memory.Ledger
	seen interface{}
}

func (p *ctxProbe) TransferIn(c bCtx.Ctx, from domain.Address, amount *big.Int) (share.Receipt, error) {
	p.seen = bCtx.Value(c, "depositTx")
	return p.Ledger.TransferIn(c, from, amount)
}

func (s *vaultSuite) TestRailSeesCallerValues() {
	probe := &ctxProbe{Ledger: s.ledger}
	uc, err := New(&VaultUseCaseCfg{
		Vault:    s.config(),
		Assets:   probe,
		NFT:      s.nft,
		Executor: s.exec,
		Clock:    s.clock,
		Metrics:  metrics.Nop(),
	})
	s.Require().NoError(err)
	defer uc.Close()

	_, err = uc.Mint(bCtx.WithValue(s.ctx, "depositTx", "0xfeed"), alice, amt("1"), nil)
	s.Require().NoError(err)
	s.Equal("0xfeed", probe.seen)
}

func (s *vaultSuite) TestContextAndClose() {
	c, cancel := bCtx.WithCancel(s.ctx)
	cancel()
	_, err := s.im.Mint(c, alice, amt("1"), nil)
	s.ErrorIs(err, context.Canceled)

	s.im.Close()
	_, err = s.im.Mint(s.ctx, alice, amt("1"), nil)
	s.ErrorIs(err, domain.ErrVaultClosed)
	s.Equal(0, s.im.Supply().Total.Sign())
}

func (s *vaultSuite) TestRoundingStress() {
	params := s.config().Curve
	for i := 0; i < 200; i++ {
		tokens := s.mint(alice, "0.0013")
		half := new(big.Int).Rsh(tokens, 1)
		_, err := s.im.Redeem(s.ctx, alice, half, nil)
		s.Require().NoError(err)
		if i%10 == 0 {
			s.Require().NoError(s.im.Lock(s.ctx, alice, domain.Big1))
		}

		supply := s.im.Supply()
		owed, err := params.RedeemValue(supply.Effective(), supply.Locked)
		s.Require().NoError(err)
		s.Require().True(s.backing().Cmp(owed) >= 0, "cycle %d: backing %s owed %s", i, s.backing(), owed)
	}

	// everybody leaves; the vault keeps the rounding dust
	bal := s.im.BalanceOf(alice)
	_, err := s.im.Redeem(s.ctx, alice, bal, nil)
	s.NoError(err)
	s.True(s.backing().Sign() >= 0)
	s.Equal(0, s.im.Supply().Effective().Sign())
}

func (s *vaultSuite) TestConcurrentWritersAndReaders() {
	const writers = 8
	const mintsPerWriter = 20
	accounts := make([]domain.Address, writers)
	for i := range accounts {
		accounts[i] = addr(0x1000 + i)
		s.ledger.Fund(accounts[i], amt("10"))
	}

	errs := make(chan error, writers*mintsPerWriter+1)
	stop := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			st := s.im.load()
			if err := s.im.shareUC.CheckInvariants(st.Shares); err != nil {
				errs <- err
				return
			}
		}
	}()

	var wg sync.WaitGroup
	var mu sync.Mutex
	minted := new(big.Int)
	for _, account := range accounts {
		wg.Add(1)
		go func(account domain.Address) {
			defer wg.Done()
			for i := 0; i < mintsPerWriter; i++ {
				tokens, err := s.im.Mint(s.ctx, account, amt("0.01"), nil)
				if err != nil {
					errs <- err
					return
				}
				mu.Lock()
				minted.Add(minted, tokens)
				mu.Unlock()
			}
		}(account)
	}
	wg.Wait()
	close(stop)
	readers.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Equal(0, minted.Cmp(s.im.Supply().Total))
	s.Equal(0, amt("1.6").Cmp(s.backing()))
	s.Len(s.sink.types(), writers*mintsPerWriter)
}
