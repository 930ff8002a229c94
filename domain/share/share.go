package share

import (
	"math/big"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

// Supply is the share supply of a vault.
type Supply struct {
	Total  *big.Int `json:"total"`
	Locked *big.Int `json:"locked"`
}

// Effective is Total - Locked.
func (s Supply) Effective() *big.Int {
	return new(big.Int).Sub(s.Total, s.Locked)
}

// State is the mutable share accounting of one vault. Keys are lower case addresses.
type State struct {
	Total      *big.Int
	Locked     *big.Int
	Balances   map[domain.Address]*big.Int
	Allowances map[domain.Address]map[domain.Address]*big.Int
}

func NewState() *State {
	return &State{
		Total:      new(big.Int),
		Locked:     new(big.Int),
		Balances:   map[domain.Address]*big.Int{},
		Allowances: map[domain.Address]map[domain.Address]*big.Int{},
	}
}

// Clone deep copies the state.
func (s *State) Clone() *State {
	c := &State{
		Total:      domain.CopyAmount(s.Total),
		Locked:     domain.CopyAmount(s.Locked),
		Balances:   make(map[domain.Address]*big.Int, len(s.Balances)),
		Allowances: make(map[domain.Address]map[domain.Address]*big.Int, len(s.Allowances)),
	}
	for a, b := range s.Balances {
		c.Balances[a] = domain.CopyAmount(b)
	}
	for owner, m := range s.Allowances {
		cm := make(map[domain.Address]*big.Int, len(m))
		for spender, v := range m {
			cm[spender] = domain.CopyAmount(v)
		}
		c.Allowances[owner] = cm
	}
	return c
}

func (s *State) BalanceOf(account domain.Address) *big.Int {
	return domain.CopyAmount(s.Balances[account.ToLower()])
}

func (s *State) Allowance(owner, spender domain.Address) *big.Int {
	return domain.CopyAmount(s.Allowances[owner.ToLower()][spender.ToLower()])
}

func (s *State) Supply() Supply {
	return Supply{
		Total:  domain.CopyAmount(s.Total),
		Locked: domain.CopyAmount(s.Locked),
	}
}

// Receipt is what a rail returns for a completed asset movement.
type Receipt struct {
	Ref    string   `json:"ref"`
	Amount *big.Int `json:"amount"`
}

// AssetTransfer is the payment rail backing the shares.
type AssetTransfer interface {
	// TransferIn pulls amount from the payer into the vault
	TransferIn(ctx ctx.Ctx, from domain.Address, amount *big.Int) (Receipt, error)
	// TransferOut pays amount from the vault to the receiver
	TransferOut(ctx ctx.Ctx, to domain.Address, amount *big.Int) (Receipt, error)
	BalanceOf(ctx ctx.Ctx, account domain.Address) (*big.Int, error)
}

// UseCase applies share ledger operations to a State. Implementations never
// touch the asset rail; the caller moves the asset once the ledger accepted.
type UseCase interface {
	Mint(s *State, payer domain.Address, assetPaid, minTokensOut *big.Int) (*big.Int, error)
	Redeem(s *State, holder domain.Address, tokens, minAssetOut, backing *big.Int) (*big.Int, error)
	Lock(s *State, holder domain.Address, tokens *big.Int) error
	Transfer(s *State, from, to domain.Address, amount *big.Int) error
	Approve(s *State, owner, spender domain.Address, amount *big.Int) error
	TransferFrom(s *State, spender, from, to domain.Address, amount *big.Int) error
	LockFrom(s *State, spender, holder domain.Address, tokens *big.Int) error

	PreviewMint(s *State, asset *big.Int) (*big.Int, error)
	PreviewRedeem(s *State, tokens *big.Int) (*big.Int, error)
	CheckInvariants(s *State) error
}
