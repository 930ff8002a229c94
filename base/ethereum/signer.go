package ethereum

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
)

// Signer signs legacy EIP-155 transactions for one key on one chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address domain.Address
	chainId *big.Int
	signer  types.Signer
}

func NewSigner(key *ecdsa.PrivateKey, chainId *big.Int) (*Signer, error) {
	if key == nil {
		return nil, xerrors.New("nil signing key")
	}
	if chainId == nil || chainId.Sign() <= 0 {
		return nil, xerrors.Errorf("invalid chain id %v", chainId)
	}
	return &Signer{
		key:     key,
		address: KeyAddress(key),
		chainId: new(big.Int).Set(chainId),
		signer:  types.NewEIP155Signer(chainId),
	}, nil
}

func (s *Signer) Address() domain.Address {
	return s.address
}

func (s *Signer) ChainId() *big.Int {
	return new(big.Int).Set(s.chainId)
}

func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return nil, xerrors.Errorf("sign tx: %w", err)
	}
	return signed, nil
}

// TxSender recovers the sender of any transaction type valid on chainId.
func TxSender(tx *types.Transaction, chainId *big.Int) (domain.Address, error) {
	from, err := types.Sender(types.LatestSignerForChainID(chainId), tx)
	if err != nil {
		return "", xerrors.Errorf("recover sender of %s: %w", tx.Hash().Hex(), err)
	}
	return domain.AddressFromCommon(from), nil
}
