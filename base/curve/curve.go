// Package curve prices the vault share on the cubic bonding curve price(x) = k·x².
//
// All values are 18-decimal fixed-point integers. The cost of minting t tokens on
// top of a supply s is the integral of the price from s to s+t, inflated by the fee:
//
//	cost = k·((s+t)³ − s³)/3 · (1 + fee)
//
// which equals k·(s²t + st² + t³/3)·(1 + fee). The whole expression is evaluated
// with a single division so that rounding happens exactly once.
package curve

import (
	"math/big"

	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
)

const (
	// DefaultMaxIterations bounds the inversion search. ceil(log2(1e24)) = 80
	// halvings are enough to close the default bracket to one base unit.
	DefaultMaxIterations = 128
)

var (
	// DefaultUpperBound is the top of the inversion search, 1,000,000 tokens.
	DefaultUpperBound = new(big.Int).Mul(big.NewInt(1_000_000), domain.Wad)

	// 3·WAD⁴, the combined scale of the closed form
	denominator = new(big.Int).Mul(domain.Big3, new(big.Int).Exp(domain.Wad, big.NewInt(4), nil))
)

// Rounding selects which way the single division of the closed form rounds.
type Rounding int

const (
	RoundDown Rounding = iota
	RoundUp
)

// Params are the per-deployment curve constants.
type Params struct {
	K             *big.Int
	FeeRate       *big.Int
	UpperBound    *big.Int
	MaxIterations int
}

// ParseParams builds Params from decimal strings such as "0.0001" and "0.1".
func ParseParams(k, feeRate string) (Params, error) {
	kd, err := decimal.NewFromString(k)
	if err != nil {
		return Params{}, xerrors.Errorf("parse k %q: %w", k, domain.ErrInvalidNumberFormat)
	}
	fd, err := decimal.NewFromString(feeRate)
	if err != nil {
		return Params{}, xerrors.Errorf("parse fee rate %q: %w", feeRate, domain.ErrInvalidNumberFormat)
	}
	if kd.IsNegative() || fd.IsNegative() {
		return Params{}, xerrors.Errorf("negative curve params: %w", domain.ErrInvalidAmount)
	}
	return Params{
		K:             kd.Shift(domain.Decimals).BigInt(),
		FeeRate:       fd.Shift(domain.Decimals).BigInt(),
		UpperBound:    new(big.Int).Set(DefaultUpperBound),
		MaxIterations: DefaultMaxIterations,
	}, nil
}

// Initialized reports whether k > 0.
func (p Params) Initialized() bool {
	return p.K != nil && p.K.Sign() > 0
}

func (p Params) upperBound() *big.Int {
	if p.UpperBound == nil || p.UpperBound.Sign() <= 0 {
		return DefaultUpperBound
	}
	return p.UpperBound
}

func (p Params) maxIterations() int {
	if p.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return p.MaxIterations
}

func (p Params) fee() *big.Int {
	if p.FeeRate == nil {
		return domain.Big0
	}
	return p.FeeRate
}

// Integral evaluates the fee-inflated integral of the curve over [supply, supply+tokens].
func Integral(tokens, supply, k, feeRate *big.Int, r Rounding) (*big.Int, error) {
	if k == nil || k.Sign() <= 0 {
		return nil, domain.ErrCurveUninitialized
	}
	if tokens == nil || supply == nil || tokens.Sign() < 0 || supply.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}
	if feeRate == nil {
		feeRate = domain.Big0
	} else if feeRate.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}
	if tokens.Sign() == 0 {
		return new(big.Int), nil
	}

	end := new(big.Int).Add(supply, tokens)
	num := new(big.Int).Exp(end, domain.Big3, nil)
	num.Sub(num, new(big.Int).Exp(supply, domain.Big3, nil))
	num.Mul(num, k)
	num.Mul(num, new(big.Int).Add(domain.Wad, feeRate))

	q, m := new(big.Int).QuoRem(num, denominator, new(big.Int))
	if r == RoundUp && m.Sign() > 0 {
		q.Add(q, domain.Big1)
	}
	return q, nil
}

// CostToMint is the asset a payer owes for tokens minted on top of supply.
// It rounds up.
func CostToMint(tokens, supply, k, feeRate *big.Int) (*big.Int, error) {
	return Integral(tokens, supply, k, feeRate, RoundUp)
}

// RedeemValue is the asset paid out for burning tokens that bring the supply
// down to supplyAfter. It rounds down.
func RedeemValue(tokens, supplyAfter, k, feeRate *big.Int) (*big.Int, error) {
	return Integral(tokens, supplyAfter, k, feeRate, RoundDown)
}

// CostToMint is the Params form of the package function.
func (p Params) CostToMint(tokens, supply *big.Int) (*big.Int, error) {
	return CostToMint(tokens, supply, p.K, p.fee())
}

// RedeemValue is the Params form of the package function.
func (p Params) RedeemValue(tokens, supplyAfter *big.Int) (*big.Int, error) {
	return RedeemValue(tokens, supplyAfter, p.K, p.fee())
}

// TokensForAsset returns the largest t with CostToMint(t, supply) <= asset.
//
// The answer is bracketed in [0, UpperBound] and narrowed by bisection until
// the bracket is one base unit wide. An asset amount that buys UpperBound or
// more tokens, or a search that runs out of iterations, is reported as
// ErrPriceSearchDidNotConverge.
func (p Params) TokensForAsset(asset, supply *big.Int) (*big.Int, error) {
	if !p.Initialized() {
		return nil, domain.ErrCurveUninitialized
	}
	if asset == nil || supply == nil || asset.Sign() < 0 || supply.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}
	if asset.Sign() == 0 {
		return new(big.Int), nil
	}

	hi := new(big.Int).Set(p.upperBound())
	top, err := p.CostToMint(hi, supply)
	if err != nil {
		return nil, err
	}
	if top.Cmp(asset) <= 0 {
		return nil, xerrors.Errorf("cost at upper bound %s is below %s: %w",
			domain.FormatAmount(top), domain.FormatAmount(asset), domain.ErrPriceSearchDidNotConverge)
	}

	lo := new(big.Int)
	gap := new(big.Int)
	mid := new(big.Int)
	for i := 0; i < p.maxIterations(); i++ {
		if gap.Sub(hi, lo).Cmp(domain.Big1) <= 0 {
			return lo, nil
		}
		mid.Add(lo, hi)
		mid.Rsh(mid, 1)
		cost, err := p.CostToMint(mid, supply)
		if err != nil {
			return nil, err
		}
		if cost.Cmp(asset) <= 0 {
			lo.Set(mid)
		} else {
			hi.Set(mid)
		}
	}
	if gap.Sub(hi, lo).Cmp(domain.Big1) <= 0 {
		return lo, nil
	}
	return nil, xerrors.Errorf("bracket still %s wide after %d iterations: %w",
		gap.String(), p.maxIterations(), domain.ErrPriceSearchDidNotConverge)
}

// TokensForAsset is the free-function form used with explicit constants.
func TokensForAsset(asset, supply, k, feeRate *big.Int) (*big.Int, error) {
	return Params{K: k, FeeRate: feeRate}.TokensForAsset(asset, supply)
}
