package usecase

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/custody"
)

type impl struct {
	vault domain.Address
}

// New returns the custody rules for the NFTs held by vault.
func New(vault domain.Address) custody.UseCase {
	return &impl{vault: vault}
}

func (im *impl) Deposit(r *custody.Registry, assetId domain.AssetId, owner domain.Address, now time.Time) (*custody.AssetRecord, error) {
	if r.InCustody(assetId) {
		return nil, xerrors.Errorf("asset %s: %w", assetId, domain.ErrAssetAlreadyInCustody)
	}
	if !owner.Equals(im.vault) {
		return nil, xerrors.Errorf("asset %s is owned by %s: %w", assetId, owner, domain.ErrAssetNotInCustody)
	}
	rec := &custody.AssetRecord{
		AssetId:     assetId,
		InCustody:   true,
		DepositedAt: now,
	}
	r.Records[assetId] = rec
	return rec, nil
}

func (im *impl) release(r *custody.Registry, assetId domain.AssetId, to domain.Address, now time.Time) (*custody.AssetRecord, error) {
	if to.IsEmpty() {
		return nil, domain.ErrInvalidAddress
	}
	if to.Equals(im.vault) {
		return nil, xerrors.Errorf("release to the vault itself: %w", domain.ErrInvalidAddress)
	}
	rec, ok := r.Records[assetId]
	if !ok || !rec.InCustody {
		return nil, xerrors.Errorf("asset %s: %w", assetId, domain.ErrAssetNotInCustody)
	}
	rec.InCustody = false
	rec.ReleasedTo = to.ToLower()
	rec.ReleasedAt = now
	return rec, nil
}

func (im *impl) Release(r *custody.Registry, assetId domain.AssetId, to domain.Address, locked bool, now time.Time) (*custody.AssetRecord, error) {
	if r.InCustody(assetId) && locked {
		return nil, xerrors.Errorf("asset %s: %w", assetId, domain.ErrAssetLocked)
	}
	return im.release(r, assetId, to, now)
}

func (im *impl) Settle(r *custody.Registry, assetId domain.AssetId, to domain.Address, now time.Time) (*custody.AssetRecord, error) {
	return im.release(r, assetId, to, now)
}
