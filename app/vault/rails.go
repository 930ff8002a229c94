package main

import (
	"math/big"
	"strconv"

	"golang.org/x/xerrors"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	ethutil "github.com/x-xyz/nftvault/base/ethereum"
	"github.com/x-xyz/nftvault/base/tracker"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/custody"
	"github.com/x-xyz/nftvault/domain/gateway"
	"github.com/x-xyz/nftvault/domain/share"
	"github.com/x-xyz/nftvault/service/rail/evm"
	"github.com/x-xyz/nftvault/service/rail/memory"
	hc_usecase "github.com/x-xyz/nftvault/stores/healthcheck/usecase"
)

type rails struct {
	vault    domain.Address
	assets   share.AssetTransfer
	nft      custody.NFT
	executor gateway.Executor
	probes   []hc_usecase.Probe

	// logs and collection feed the deposit tracker, nil on the memory rail
	logs       tracker.LogSource
	collection domain.Address
}

func newMemoryRails(cfg *config) (*rails, error) {
	addr := domain.Address(cfg.Vault.Address)
	if !addr.IsValid() {
		return nil, xerrors.Errorf("vault.address %q: %w", cfg.Vault.Address, domain.ErrInvalidAddress)
	}
	ledger := memory.NewLedger(addr)
	for account, amount := range cfg.Dev.Fund {
		a, err := domain.ParseAmount(amount)
		if err != nil {
			return nil, xerrors.Errorf("dev.fund %s: %w", account, err)
		}
		ledger.Fund(domain.Address(account), a)
	}
	nft := memory.NewCollection(addr)
	for id, owner := range cfg.Dev.NFTs {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, xerrors.Errorf("dev.nfts %q: %w", id, domain.ErrInvalidNumberFormat)
		}
		nft.Mint(domain.AssetId(n), domain.Address(owner))
	}
	return &rails{
		vault:    addr,
		assets:   ledger,
		nft:      nft,
		executor: memory.NewExecutor(ledger),
	}, nil
}

func newEvmRails(c bCtx.Ctx, cfg *config) (*rails, error) {
	key, err := ethutil.ParseKey(cfg.Evm.VaultKey)
	if err != nil {
		return nil, err
	}
	signer, err := ethutil.NewSigner(key, big.NewInt(cfg.Evm.ChainId))
	if err != nil {
		return nil, err
	}
	backend, err := evm.Dial(c, cfg.Evm)
	if err != nil {
		return nil, err
	}
	client := evm.NewClient(backend, signer, evm.WithReceiptTimeout(cfg.Evm.ReceiptTimeout))

	nft := evm.NewNFT(client, domain.Address(cfg.Evm.Collection))
	if err := nft.MustBeERC721(c); err != nil {
		return nil, err
	}
	assets := evm.NewAsset(client)
	logs, _ := backend.(tracker.LogSource)
	return &rails{
		logs:       logs,
		collection: domain.Address(cfg.Evm.Collection),
		vault:      client.Vault(),
		assets:     assets,
		nft:        nft,
		executor:   evm.NewExecutor(client),
		probes: []hc_usecase.Probe{{
			Name: "rpc",
			Check: func(c bCtx.Ctx) error {
				_, err := assets.BalanceOf(c, client.Vault())
				return err
			},
		}},
	}, nil
}
