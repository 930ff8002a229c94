package abi

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/xerrors"
)

var ERC721TokenABI abi.ABI

// ERC721InterfaceId is the ERC-165 id of ERC-721
var ERC721InterfaceId = [4]byte{0x80, 0xac, 0x58, 0xcd}

func init() {
	_abi, err := abi.JSON(strings.NewReader(erc721ABIJson))
	if err != nil {
		panic("Failed to parse ABI")
	}
	ERC721TokenABI = _abi
}

type TransferLog struct {
	From    common.Address
	To      common.Address
	TokenId *big.Int
}

// ToTransferLog decodes an ERC-721 Transfer log. All three fields are indexed.
func ToTransferLog(l *types.Log) (*TransferLog, error) {
	ev := ERC721TokenABI.Events["Transfer"]
	if len(l.Topics) != 4 || l.Topics[0] != ev.ID {
		return nil, xerrors.Errorf("not an erc721 transfer log")
	}
	return &TransferLog{
		From:    common.BytesToAddress(l.Topics[1].Bytes()),
		To:      common.BytesToAddress(l.Topics[2].Bytes()),
		TokenId: new(big.Int).SetBytes(l.Topics[3].Bytes()),
	}, nil
}

var erc721ABIJson = `
[
  {
    "anonymous": false,
    "inputs": [
      { "indexed": true, "internalType": "address", "name": "from", "type": "address" },
      { "indexed": true, "internalType": "address", "name": "to", "type": "address" },
      { "indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256" }
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "inputs": [{ "internalType": "uint256", "name": "tokenId", "type": "uint256" }],
    "name": "ownerOf",
    "outputs": [{ "internalType": "address", "name": "", "type": "address" }],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      { "internalType": "address", "name": "from", "type": "address" },
      { "internalType": "address", "name": "to", "type": "address" },
      { "internalType": "uint256", "name": "tokenId", "type": "uint256" }
    ],
    "name": "safeTransferFrom",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{ "internalType": "bytes4", "name": "interfaceId", "type": "bytes4" }],
    "name": "supportsInterface",
    "outputs": [{ "internalType": "bool", "name": "", "type": "bool" }],
    "stateMutability": "view",
    "type": "function"
  }
]
`
