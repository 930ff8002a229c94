package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/xerrors"

	baseabi "github.com/x-xyz/nftvault/base/abi"
	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

// NFT is an ERC-721 collection the vault holds tokens of.
type NFT struct {
	client     *Client
	collection common.Address
}

func NewNFT(client *Client, collection domain.Address) *NFT {
	return &NFT{
		client:     client,
		collection: collection.ToCommon(),
	}
}

// Supports721Interface asks the collection through ERC-165.
func (n *NFT) Supports721Interface(ctx bCtx.Ctx) (bool, error) {
	unpacked, err := n.client.Call(ctx, n.collection, baseabi.ERC721TokenABI, "supportsInterface", baseabi.ERC721InterfaceId)
	if err != nil {
		return false, err
	}
	return unpacked[0].(bool), nil
}

// MustBeERC721 fails with ErrNotERC721 unless the collection reports the interface.
func (n *NFT) MustBeERC721(ctx bCtx.Ctx) error {
	ok, err := n.Supports721Interface(ctx)
	if err != nil {
		return xerrors.Errorf("supportsInterface: %w", err)
	}
	if !ok {
		return xerrors.Errorf("%s: %w", n.collection.Hex(), ErrNotERC721)
	}
	return nil
}

func (n *NFT) OwnerOf(ctx bCtx.Ctx, assetId domain.AssetId) (domain.Address, error) {
	unpacked, err := n.client.Call(ctx, n.collection, baseabi.ERC721TokenABI, "ownerOf", assetId.BigInt())
	if err != nil {
		return "", err
	}
	return domain.AddressFromCommon(unpacked[0].(common.Address)), nil
}

func (n *NFT) Transfer(ctx bCtx.Ctx, assetId domain.AssetId, to domain.Address) error {
	data, err := baseabi.ERC721TokenABI.Pack("safeTransferFrom", n.client.vault, to.ToCommon(), assetId.BigInt())
	if err != nil {
		ctx.WithField("err", err).Error("abi.Pack failed")
		return err
	}
	_, err = n.client.Send(bCtx.WithValue(ctx, "assetId", assetId), n.collection, nil, data)
	return err
}
