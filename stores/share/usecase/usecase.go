package usecase

import (
	"math/big"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/curve"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/share"
)

type impl struct {
	curve     curve.Params
	maxSupply *big.Int
}

// New returns the share ledger rules for a curve. maxSupply nil or zero means uncapped.
func New(params curve.Params, maxSupply *big.Int) share.UseCase {
	return &impl{
		curve:     params,
		maxSupply: domain.CopyAmount(maxSupply),
	}
}

var sink = domain.SinkAddress.ToLower()

func (im *impl) credit(s *share.State, account domain.Address, amount *big.Int) {
	account = account.ToLower()
	bal, ok := s.Balances[account]
	if !ok {
		bal = new(big.Int)
		s.Balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (im *impl) debit(s *share.State, account domain.Address, amount *big.Int) error {
	account = account.ToLower()
	bal := s.Balances[account]
	if bal == nil || bal.Cmp(amount) < 0 {
		return xerrors.Errorf("%s holds %s, needs %s: %w",
			account, domain.FormatAmount(bal), domain.FormatAmount(amount), domain.ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		delete(s.Balances, account)
	}
	return nil
}

func (im *impl) spend(s *share.State, owner, spender domain.Address, amount *big.Int) error {
	if owner.Equals(spender) {
		return nil
	}
	allowed := s.Allowances[owner.ToLower()][spender.ToLower()]
	if allowed == nil || allowed.Cmp(amount) < 0 {
		return xerrors.Errorf("%s allowed %s to spend %s of %s: %w",
			owner, spender, domain.FormatAmount(allowed), domain.FormatAmount(amount), domain.ErrInsufficientAllowance)
	}
	allowed.Sub(allowed, amount)
	return nil
}

func checkAccount(a domain.Address) error {
	if a.IsEmpty() {
		return xerrors.Errorf("empty account: %w", domain.ErrInvalidAddress)
	}
	if a.ToLower() == sink {
		return domain.ErrSinkTransfer
	}
	return nil
}

func orZero(a *big.Int) *big.Int {
	if a == nil {
		return domain.Big0
	}
	return a
}

func (im *impl) Mint(s *share.State, payer domain.Address, assetPaid, minTokensOut *big.Int) (*big.Int, error) {
	if !domain.IsPositive(assetPaid) {
		return nil, domain.ErrInvalidAmount
	}
	if err := checkAccount(payer); err != nil {
		return nil, err
	}

	tokens, err := im.curve.TokensForAsset(assetPaid, s.Total)
	if err != nil {
		return nil, err
	}
	if tokens.Sign() == 0 {
		return nil, xerrors.Errorf("%s buys no tokens: %w", domain.FormatAmount(assetPaid), domain.ErrInvalidAmount)
	}
	if tokens.Cmp(orZero(minTokensOut)) < 0 {
		return nil, xerrors.Errorf("mint %s < min %s: %w",
			domain.FormatAmount(tokens), domain.FormatAmount(minTokensOut), domain.ErrSlippageExceeded)
	}
	total := new(big.Int).Add(s.Total, tokens)
	if domain.IsPositive(im.maxSupply) && total.Cmp(im.maxSupply) > 0 {
		return nil, xerrors.Errorf("supply %s > cap %s: %w",
			domain.FormatAmount(total), domain.FormatAmount(im.maxSupply), domain.ErrSupplyCapExceeded)
	}

	im.credit(s, payer, tokens)
	s.Total = total
	return tokens, nil
}

func (im *impl) Redeem(s *share.State, holder domain.Address, tokens, minAssetOut, backing *big.Int) (*big.Int, error) {
	if !domain.IsPositive(tokens) {
		return nil, domain.ErrInvalidAmount
	}
	if err := checkAccount(holder); err != nil {
		return nil, err
	}
	if bal := s.Balances[holder.ToLower()]; bal == nil || bal.Cmp(tokens) < 0 {
		return nil, xerrors.Errorf("%s holds %s, redeems %s: %w",
			holder, domain.FormatAmount(bal), domain.FormatAmount(tokens), domain.ErrInsufficientBalance)
	}

	// locked tokens sit on the sink, so tokens <= Total - Locked here
	supplyAfter := new(big.Int).Sub(s.Total, tokens)
	assetOut, err := im.curve.RedeemValue(tokens, supplyAfter)
	if err != nil {
		return nil, err
	}
	if assetOut.Cmp(orZero(minAssetOut)) < 0 {
		return nil, xerrors.Errorf("redeem %s < min %s: %w",
			domain.FormatAmount(assetOut), domain.FormatAmount(minAssetOut), domain.ErrSlippageExceeded)
	}
	if backing = orZero(backing); backing.Sign() == 0 || backing.Cmp(assetOut) < 0 {
		return nil, xerrors.Errorf("backing %s, payout %s: %w",
			domain.FormatAmount(backing), domain.FormatAmount(assetOut), domain.ErrInsufficientBacking)
	}
	if assetOut.Sign() == 0 {
		return nil, xerrors.Errorf("%s tokens redeem for nothing: %w", domain.FormatAmount(tokens), domain.ErrInvalidAmount)
	}

	if err := im.debit(s, holder, tokens); err != nil {
		return nil, err
	}
	s.Total = supplyAfter
	return assetOut, nil
}

func (im *impl) Lock(s *share.State, holder domain.Address, tokens *big.Int) error {
	if !domain.IsPositive(tokens) {
		return domain.ErrInvalidAmount
	}
	if err := checkAccount(holder); err != nil {
		return err
	}
	if err := im.debit(s, holder, tokens); err != nil {
		return err
	}
	im.credit(s, sink, tokens)
	s.Locked = new(big.Int).Add(s.Locked, tokens)
	return nil
}

func (im *impl) Transfer(s *share.State, from, to domain.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return domain.ErrInvalidAmount
	}
	if err := checkAccount(from); err != nil {
		return err
	}
	if to.ToLower() == sink {
		return im.Lock(s, from, amount)
	}
	if err := checkAccount(to); err != nil {
		return err
	}
	if err := im.debit(s, from, amount); err != nil {
		return err
	}
	im.credit(s, to, amount)
	return nil
}

func (im *impl) Approve(s *share.State, owner, spender domain.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	if err := checkAccount(owner); err != nil {
		return err
	}
	if spender.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	o := owner.ToLower()
	if s.Allowances[o] == nil {
		s.Allowances[o] = map[domain.Address]*big.Int{}
	}
	if amount.Sign() == 0 {
		delete(s.Allowances[o], spender.ToLower())
		return nil
	}
	s.Allowances[o][spender.ToLower()] = new(big.Int).Set(amount)
	return nil
}

func (im *impl) TransferFrom(s *share.State, spender, from, to domain.Address, amount *big.Int) error {
	if !domain.IsPositive(amount) {
		return domain.ErrInvalidAmount
	}
	if err := checkAccount(from); err != nil {
		return err
	}
	if bal := s.Balances[from.ToLower()]; bal == nil || bal.Cmp(amount) < 0 {
		return xerrors.Errorf("%s holds %s: %w", from, domain.FormatAmount(bal), domain.ErrInsufficientBalance)
	}
	if err := im.spend(s, from, spender, amount); err != nil {
		return err
	}
	return im.Transfer(s, from, to, amount)
}

func (im *impl) LockFrom(s *share.State, spender, holder domain.Address, tokens *big.Int) error {
	return im.TransferFrom(s, spender, holder, domain.SinkAddress, tokens)
}

func (im *impl) PreviewMint(s *share.State, asset *big.Int) (*big.Int, error) {
	if asset == nil || asset.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}
	return im.curve.TokensForAsset(asset, s.Total)
}

func (im *impl) PreviewRedeem(s *share.State, tokens *big.Int) (*big.Int, error) {
	if tokens == nil || tokens.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}
	effective := new(big.Int).Sub(s.Total, s.Locked)
	if tokens.Cmp(effective) > 0 {
		return nil, xerrors.Errorf("%s exceeds effective supply %s: %w",
			domain.FormatAmount(tokens), domain.FormatAmount(effective), domain.ErrInsufficientBalance)
	}
	return im.curve.RedeemValue(tokens, new(big.Int).Sub(s.Total, tokens))
}

// CheckInvariants derives the supply from the balances and compares.
func (im *impl) CheckInvariants(s *share.State) error {
	if s.Locked.Sign() < 0 || s.Locked.Cmp(s.Total) > 0 {
		return xerrors.Errorf("locked %s, total %s: %w", s.Locked, s.Total, domain.ErrInternalServerError)
	}
	if sinkBal := orZero(s.Balances[sink]); sinkBal.Cmp(s.Locked) != 0 {
		return xerrors.Errorf("sink holds %s, locked %s: %w", sinkBal, s.Locked, domain.ErrInternalServerError)
	}
	sum := new(big.Int)
	for account, bal := range s.Balances {
		if bal.Sign() < 0 {
			return xerrors.Errorf("%s holds %s: %w", account, bal, domain.ErrInternalServerError)
		}
		sum.Add(sum, bal)
	}
	if sum.Cmp(s.Total) != 0 {
		return xerrors.Errorf("balances sum %s, total %s: %w", sum, s.Total, domain.ErrInternalServerError)
	}
	if domain.IsPositive(im.maxSupply) && s.Total.Cmp(im.maxSupply) > 0 {
		return xerrors.Errorf("total %s over cap %s: %w", s.Total, im.maxSupply, domain.ErrInternalServerError)
	}
	return nil
}
