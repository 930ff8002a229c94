// Package memory is an in-process rail: an asset ledger, an NFT collection and
// an executor sharing one vault address.
package memory

import (
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/share"
)

const (
	OpTransferIn  = "transferIn"
	OpTransferOut = "transferOut"
	OpNFTTransfer = "nftTransfer"
	OpExecute     = "execute"
)

// Ledger is a native-currency style balance book.
type Ledger struct {
	faults

	mu       sync.RWMutex
	vault    domain.Address
	balances map[domain.Address]*big.Int
	seq      uint64
}

func NewLedger(vault domain.Address) *Ledger {
	return &Ledger{
		vault:    vault.ToLower(),
		balances: map[domain.Address]*big.Int{},
	}
}

// Fund credits account out of thin air.
func (l *Ledger) Fund(account domain.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(account.ToLower(), amount)
}

func (l *Ledger) add(account domain.Address, amount *big.Int) {
	bal, ok := l.balances[account]
	if !ok {
		bal = new(big.Int)
		l.balances[account] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) move(from, to domain.Address, amount *big.Int, short error) (share.Receipt, error) {
	if amount == nil || amount.Sign() < 0 {
		return share.Receipt{}, domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	from = from.ToLower()
	bal := l.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return share.Receipt{}, xerrors.Errorf("%s holds %s, moves %s: %w",
			from, domain.FormatAmount(bal), domain.FormatAmount(amount), short)
	}
	bal.Sub(bal, amount)
	l.add(to.ToLower(), amount)
	l.seq++
	return share.Receipt{
		Ref:    fmt.Sprintf("mem-%d", l.seq),
		Amount: new(big.Int).Set(amount),
	}, nil
}

func (l *Ledger) TransferIn(c ctx.Ctx, from domain.Address, amount *big.Int) (share.Receipt, error) {
	if err := l.take(OpTransferIn); err != nil {
		return share.Receipt{}, err
	}
	return l.move(from, l.vault, amount, domain.ErrInsufficientBalance)
}

func (l *Ledger) TransferOut(c ctx.Ctx, to domain.Address, amount *big.Int) (share.Receipt, error) {
	if err := l.take(OpTransferOut); err != nil {
		return share.Receipt{}, err
	}
	return l.move(l.vault, to, amount, domain.ErrInsufficientBacking)
}

func (l *Ledger) BalanceOf(c ctx.Ctx, account domain.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.CopyAmount(l.balances[account.ToLower()]), nil
}
