package tracker

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/x-xyz/nftvault/base/abi"
	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/custody"
)

var transferSig = abi.ERC721TokenABI.Events["Transfer"].ID

// Depositor registers an NFT the vault already holds.
type Depositor interface {
	DepositAsset(ctx bCtx.Ctx, assetId domain.AssetId) (*custody.AssetRecord, error)
}

type DepositHandlerCfg struct {
	Vault     domain.Address
	Depositor Depositor
}

// DepositHandler turns collection transfers into the vault into custody deposits.
type DepositHandler struct {
	vault     common.Address
	depositor Depositor
}

func NewDepositHandler(cfg *DepositHandlerCfg) EventHandler {
	return &DepositHandler{
		vault:     cfg.Vault.ToCommon(),
		depositor: cfg.Depositor,
	}
}

func (h *DepositHandler) GetFilterTopics() [][]common.Hash {
	return [][]common.Hash{
		{transferSig},
		nil,
		{common.BytesToHash(h.vault.Bytes())},
	}
}

func (h *DepositHandler) ProcessEvents(ctx bCtx.Ctx, logs []types.Log) error {
	for i := range logs {
		l := &logs[i]
		if l.Removed {
			continue
		}
		transfer, err := abi.ToTransferLog(l)
		if err != nil {
			ctx.WithFields(log.Fields{
				"err": err,
				"tx":  l.TxHash.Hex(),
			}).Warn("unknown log, skipping")
			continue
		}
		if transfer.To != h.vault {
			continue
		}
		if !transfer.TokenId.IsUint64() {
			ctx.WithField("tokenId", transfer.TokenId.String()).Warn("token id out of range, skipping")
			continue
		}

		assetId := domain.AssetId(transfer.TokenId.Uint64())
		c := bCtx.WithValues(ctx, log.Fields{
			"assetId": assetId,
			"tx":      l.TxHash.Hex(),
		})
		_, err = h.depositor.DepositAsset(c, assetId)
		switch {
		case err == nil:
			c.WithField("from", transfer.From.Hex()).Info("asset deposited")
		case errors.Is(err, domain.ErrAssetAlreadyInCustody), errors.Is(err, domain.ErrAssetNotInCustody):
			// registered by hand, or already moved out again
			c.WithField("err", err).Info("transfer skipped")
		default:
			c.WithField("err", err).Error("depositor.DepositAsset failed")
			return err
		}
	}
	return nil
}
