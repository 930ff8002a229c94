package memory

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

// Collection is an ERC-721 style owner book.
type Collection struct {
	faults

	mu     sync.RWMutex
	vault  domain.Address
	owners map[domain.AssetId]domain.Address
}

func NewCollection(vault domain.Address) *Collection {
	return &Collection{
		vault:  vault.ToLower(),
		owners: map[domain.AssetId]domain.Address{},
	}
}

// Mint assigns assetId to owner, replacing any previous owner.
func (c *Collection) Mint(assetId domain.AssetId, owner domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[assetId] = owner.ToLower()
}

func (c *Collection) OwnerOf(_ ctx.Ctx, assetId domain.AssetId) (domain.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[assetId]
	if !ok {
		return "", xerrors.Errorf("token %s: %w", assetId, domain.ErrNotFound)
	}
	return owner, nil
}

func (c *Collection) Transfer(_ ctx.Ctx, assetId domain.AssetId, to domain.Address) error {
	if err := c.take(OpNFTTransfer); err != nil {
		return err
	}
	return c.TransferFrom(c.vault, assetId, to)
}

// TransferFrom moves assetId from its current owner from to to.
func (c *Collection) TransferFrom(from domain.Address, assetId domain.AssetId, to domain.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.owners[assetId]; !ok || !owner.Equals(from) {
		return xerrors.Errorf("token %s is not owned by %s: %w", assetId, from, domain.ErrAssetNotInCustody)
	}
	if to.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	c.owners[assetId] = to.ToLower()
	return nil
}
