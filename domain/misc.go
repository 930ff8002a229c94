package domain

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/xerrors"
)

// Decimals is the number of decimals of every Amount handled by the vault.
const Decimals = 18

var (
	Big0 = big.NewInt(0)
	Big1 = big.NewInt(1)
	Big3 = big.NewInt(3)
	// Wad is 1e18, one whole token in base units
	Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
)

type Address string

const EmptyAddress = Address("0x0000000000000000000000000000000000000000")

// SinkAddress is the non-transferable destination of locked shares.
const SinkAddress = Address("0x000000000000000000000000000000000000dead")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0 || a.Equals(EmptyAddress)
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

func (a Address) IsValid() bool {
	return common.IsHexAddress(string(a))
}

func (a Address) ToCommon() common.Address {
	return common.HexToAddress(string(a))
}

func AddressFromCommon(a common.Address) Address {
	return Address(a.Hex()).ToLower()
}

// AssetId is the token id of an NFT held by the vault.
type AssetId uint64

func (i AssetId) String() string {
	return strconv.FormatUint(uint64(i), 10)
}

func (i AssetId) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(i))
}

type ProposalId uint64

type AuctionId uint64

// Amount helpers. Amounts are *big.Int base units with Decimals decimals.

// ParseAmount converts a decimal string such as "0.11" into base units.
// Digits beyond Decimals are truncated.
func ParseAmount(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, xerrors.Errorf("ParseAmount %q: %w", s, ErrInvalidNumberFormat)
	}
	if d.IsNegative() {
		return nil, xerrors.Errorf("ParseAmount %q: %w", s, ErrInvalidAmount)
	}
	return d.Shift(Decimals).BigInt(), nil
}

// MustParseAmount is ParseAmount for constants and tests.
func MustParseAmount(s string) *big.Int {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FormatAmount renders base units as a decimal string.
func FormatAmount(a *big.Int) string {
	if a == nil {
		return "0"
	}
	return decimal.NewFromBigInt(a, -Decimals).String()
}

// CopyAmount returns a fresh copy, treating nil as zero.
func CopyAmount(a *big.Int) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}

// IsPositive returns true for non-nil amounts greater than zero.
func IsPositive(a *big.Int) bool {
	return a != nil && a.Sign() > 0
}
