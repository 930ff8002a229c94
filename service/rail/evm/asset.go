package evm

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	ethutil "github.com/x-xyz/nftvault/base/ethereum"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/share"
)

// DepositTxKey is the ctx key holding the hash of the payer's deposit
// transaction for TransferIn.
const DepositTxKey = "depositTx"

// WithDeposit attaches the deposit transaction hash to c.
func WithDeposit(c bCtx.Ctx, hash common.Hash) bCtx.Ctx {
	return bCtx.WithValue(c, DepositTxKey, hash.Hex())
}

// Asset is the native currency rail. The payer sends the currency to the vault
// first; TransferIn only verifies that deposit.
type Asset struct {
	client *Client

	mu sync.Mutex
	// consumed deposits, kept for the life of the process
	used map[common.Hash]struct{}
}

func NewAsset(client *Client) *Asset {
	return &Asset{
		client: client,
		used:   map[common.Hash]struct{}{},
	}
}

func (a *Asset) TransferIn(ctx bCtx.Ctx, from domain.Address, amount *big.Int) (share.Receipt, error) {
	raw, ok := bCtx.Value(ctx, DepositTxKey).(string)
	if !ok || raw == "" {
		return share.Receipt{}, ErrDepositNotFound
	}
	hash := common.HexToHash(raw)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.used[hash]; ok {
		return share.Receipt{}, xerrors.Errorf("%s: %w", raw, ErrDepositReused)
	}

	tx, _, err := a.client.backend.TransactionByHash(ctx, hash)
	if err != nil || tx == nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"tx":  raw,
		}).Warn("deposit lookup failed")
		return share.Receipt{}, xerrors.Errorf("%s: %w", raw, ErrDepositNotFound)
	}
	receipt, err := a.client.WaitMined(ctx, hash)
	if err != nil {
		return share.Receipt{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return share.Receipt{}, xerrors.Errorf("deposit %s: %w", raw, ErrTxReverted)
	}

	sender, err := ethutil.TxSender(tx, a.client.ChainId())
	if err != nil {
		return share.Receipt{}, err
	}
	switch {
	case tx.To() == nil || *tx.To() != a.client.vault:
		return share.Receipt{}, xerrors.Errorf("deposit %s is not sent to the vault: %w", raw, ErrDepositMismatch)
	case !sender.Equals(from):
		return share.Receipt{}, xerrors.Errorf("deposit %s sent by %s, not %s: %w", raw, sender, from, ErrDepositMismatch)
	case amount == nil || tx.Value().Cmp(amount) != 0:
		return share.Receipt{}, xerrors.Errorf("deposit %s carries %s, mint pays %s: %w",
			raw, domain.FormatAmount(tx.Value()), domain.FormatAmount(amount), ErrDepositMismatch)
	}

	a.used[hash] = struct{}{}
	return share.Receipt{Ref: raw, Amount: new(big.Int).Set(amount)}, nil
}

func (a *Asset) TransferOut(ctx bCtx.Ctx, to domain.Address, amount *big.Int) (share.Receipt, error) {
	if amount == nil || amount.Sign() < 0 {
		return share.Receipt{}, domain.ErrInvalidAmount
	}
	receipt, err := a.client.Send(ctx, to.ToCommon(), amount, nil)
	if err != nil {
		return share.Receipt{}, err
	}
	return share.Receipt{Ref: receipt.TxHash.Hex(), Amount: new(big.Int).Set(amount)}, nil
}

func (a *Asset) BalanceOf(ctx bCtx.Ctx, account domain.Address) (*big.Int, error) {
	bal, err := a.client.backend.BalanceAt(ctx, account.ToCommon(), nil)
	if err != nil {
		ctx.WithField("err", err).Error("backend.BalanceAt failed")
		return nil, err
	}
	return bal, nil
}
