package ethereum

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
)

func GenerateKey() (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	if privateKey, err := crypto.GenerateKey(); err != nil {
		return nil, nil, err
	} else {
		publicKey := privateKey.Public().(*ecdsa.PublicKey)
		return privateKey, publicKey, nil
	}
}

// ParseKey reads a hex private key, with or without the 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, xerrors.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func KeyAddress(key *ecdsa.PrivateKey) domain.Address {
	return domain.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey))
}
