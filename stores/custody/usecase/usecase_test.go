package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/custody"
)

var (
	vault = domain.Address("0x000000000000000000000000000000000007a017")
	alice = domain.Address("0x00000000000000000000000000000000000a11ce")
	now   = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
)

func TestDeposit(t *testing.T) {
	req := require.New(t)
	im := New(vault)
	r := custody.NewRegistry()

	_, err := im.Deposit(r, 7, alice, now)
	req.ErrorIs(err, domain.ErrAssetNotInCustody)
	req.False(r.InCustody(7))

	// owner comparison ignores case
	rec, err := im.Deposit(r, 7, domain.Address("0x000000000000000000000000000000000007A017"), now)
	req.NoError(err)
	req.True(rec.InCustody)
	req.True(r.InCustody(7))

	_, err = im.Deposit(r, 7, vault, now)
	req.ErrorIs(err, domain.ErrAssetAlreadyInCustody)
	req.True(domain.IsConflict(err))

	_, err = im.Deposit(r, 3, vault, now)
	req.NoError(err)
	req.Equal([]domain.AssetId{3, 7}, r.Assets())
}

func TestRelease(t *testing.T) {
	req := require.New(t)
	im := New(vault)
	r := custody.NewRegistry()

	_, err := im.Release(r, 7, alice, false, now)
	req.ErrorIs(err, domain.ErrAssetNotInCustody)

	_, err = im.Deposit(r, 7, vault, now)
	req.NoError(err)

	_, err = im.Release(r, 7, alice, true, now)
	req.ErrorIs(err, domain.ErrAssetLocked)
	_, err = im.Release(r, 7, domain.EmptyAddress, false, now)
	req.ErrorIs(err, domain.ErrInvalidAddress)
	_, err = im.Release(r, 7, vault, false, now)
	req.ErrorIs(err, domain.ErrInvalidAddress)
	req.True(r.InCustody(7))

	rec, err := im.Release(r, 7, alice, false, now.Add(time.Hour))
	req.NoError(err)
	req.False(rec.InCustody)
	req.Equal(alice, rec.ReleasedTo)
	req.Empty(r.Assets())

	_, err = im.Release(r, 7, alice, false, now)
	req.ErrorIs(err, domain.ErrAssetNotInCustody)

	// a released asset can come back
	_, err = im.Deposit(r, 7, vault, now)
	req.NoError(err)
}

func TestSettle(t *testing.T) {
	req := require.New(t)
	im := New(vault)
	r := custody.NewRegistry()

	_, err := im.Settle(r, 7, alice, now)
	req.ErrorIs(err, domain.ErrAssetNotInCustody)

	_, err = im.Deposit(r, 7, vault, now)
	req.NoError(err)
	c := r.Clone()

	rec, err := im.Settle(c, 7, alice, now)
	req.NoError(err)
	req.Equal(alice, rec.ReleasedTo)
	req.False(c.InCustody(7))
	req.True(r.InCustody(7))
}
