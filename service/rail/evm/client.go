// Package evm is the on-chain rail: the native currency backs the shares, an
// ERC-721 collection holds the custodied assets, and external actions are plain
// call transactions signed by the vault key.
package evm

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/backoff"
	bCtx "github.com/x-xyz/nftvault/base/ctx"
	ethutil "github.com/x-xyz/nftvault/base/ethereum"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/domain"
)

var (
	ErrTxReverted       = errors.New("transaction reverted")
	ErrTxNotMined       = errors.New("transaction not mined in time")
	ErrDepositNotFound  = errors.New("deposit transaction not found")
	ErrDepositMismatch  = errors.New("deposit does not match the mint")
	ErrDepositReused    = errors.New("deposit transaction already consumed")
	ErrNotERC721        = errors.New("collection does not support erc721")
	ErrChainIdMismatch  = errors.New("rpc chain id differs from config")
	errReceiptNotExists = ethereum.NotFound
)

// Backend is the subset of ethclient.Client the rail needs.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, number *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, number *big.Int) ([]byte, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Config struct {
	RpcUrl     string `mapstructure:"rpcUrl"`
	ChainId    int64  `mapstructure:"chainId"`
	VaultKey   string `mapstructure:"vaultKey"`
	Collection string `mapstructure:"collection"`
	// Throttle caps the rpc calls in flight, 0 disables it
	Throttle       int           `mapstructure:"throttle"`
	ReceiptTimeout time.Duration `mapstructure:"receiptTimeout"`
}

const (
	defaultPollStart      = 500 * time.Millisecond
	defaultPollLimit      = 8 * time.Second
	defaultReceiptTimeout = 3 * time.Minute
)

// Dial connects to the rpc and checks the chain id against cfg.
func Dial(ctx bCtx.Ctx, cfg Config) (Backend, error) {
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"url": cfg.RpcUrl,
		}).Error("failed to dial rpc")
		return nil, err
	}
	chainId, err := client.ChainID(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("client.ChainID failed")
		client.Close()
		return nil, err
	}
	if chainId.Int64() != cfg.ChainId {
		client.Close()
		return nil, xerrors.Errorf("rpc %d, config %d: %w", chainId.Int64(), cfg.ChainId, ErrChainIdMismatch)
	}
	if cfg.Throttle > 0 {
		return ethutil.NewThrottledClient(client, cfg.Throttle), nil
	}
	return client, nil
}

// Client sends vault transactions and waits for their receipts.
type Client struct {
	backend Backend
	signer  *ethutil.Signer
	vault   common.Address

	// serializes nonce allocation
	sendMu sync.Mutex

	pollStart time.Duration
	pollLimit time.Duration
	timeout   time.Duration
}

type Option func(*Client)

// WithReceiptPolling sets the receipt poll backoff and the overall wait.
func WithReceiptPolling(start, limit, timeout time.Duration) Option {
	return func(c *Client) {
		c.pollStart = start
		c.pollLimit = limit
		c.timeout = timeout
	}
}

// WithReceiptTimeout bounds the wait for a receipt, 0 keeps the default.
func WithReceiptTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(backend Backend, signer *ethutil.Signer, opts ...Option) *Client {
	c := &Client{
		backend:   backend,
		signer:    signer,
		vault:     signer.Address().ToCommon(),
		pollStart: defaultPollStart,
		pollLimit: defaultPollLimit,
		timeout:   defaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Vault is the address the client signs for.
func (c *Client) Vault() domain.Address {
	return domain.AddressFromCommon(c.vault)
}

func (c *Client) ChainId() *big.Int {
	return c.signer.ChainId()
}

// Call packs method, runs it against the latest block and unpacks the result.
func (c *Client) Call(ctx bCtx.Ctx, addr common.Address, _abi abi.ABI, method string, params ...interface{}) ([]interface{}, error) {
	data, err := _abi.Pack(method, params...)
	if err != nil {
		ctx.WithFields(log.Fields{
			"method": method,
			"params": params,
			"err":    err,
		}).Error("abi.Pack failed")
		return nil, err
	}
	msg := ethereum.CallMsg{
		From: c.vault,
		To:   &addr,
		Data: data,
	}
	res, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		ctx.WithField("err", err).Error("backend.CallContract failed")
		return nil, err
	}
	unpacked, err := _abi.Unpack(method, res)
	if err != nil {
		ctx.WithField("err", err).Error("abi.Unpack failed")
		return nil, err
	}
	return unpacked, nil
}

// Send signs and broadcasts a legacy transaction from the vault, then waits
// until it is mined. A mined but failed transaction is ErrTxReverted.
func (c *Client) Send(ctx bCtx.Ctx, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}
	tx, err := c.signAndSend(ctx, to, value, data)
	if err != nil {
		return nil, err
	}
	ctx = bCtx.WithValue(ctx, "tx", tx.Hash().Hex())

	receipt, err := c.WaitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		ctx.WithField("block", receipt.BlockNumber).Warn("tx reverted")
		return receipt, xerrors.Errorf("%s: %w", tx.Hash().Hex(), ErrTxReverted)
	}
	return receipt, nil
}

func (c *Client) signAndSend(ctx bCtx.Ctx, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.vault)
	if err != nil {
		ctx.WithField("err", err).Error("backend.PendingNonceAt failed")
		return nil, err
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("backend.SuggestGasPrice failed")
		return nil, err
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.vault,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		ctx.WithFields(log.Fields{
			"err": err,
			"to":  to.Hex(),
		}).Error("backend.EstimateGas failed")
		return nil, err
	}

	tx, err := c.signer.SignTx(types.NewTransaction(nonce, to, value, gas, gasPrice, data))
	if err != nil {
		return nil, err
	}
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		ctx.WithFields(log.Fields{
			"err":   err,
			"nonce": nonce,
		}).Error("backend.SendTransaction failed")
		return nil, err
	}
	return tx, nil
}

// WaitMined polls for the receipt of hash until it exists or the wait times out.
func (c *Client) WaitMined(ctx bCtx.Ctx, hash common.Hash) (*types.Receipt, error) {
	wctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	var receipt *types.Receipt
	b := backoff.NewExponential(c.pollStart, c.pollLimit)
	err := backoff.Retry(wctx, b, math.MaxInt32, func(int) error {
		r, err := c.backend.TransactionReceipt(wctx, hash)
		if err != nil {
			return err
		}
		if r == nil {
			return errReceiptNotExists
		}
		receipt = r
		return nil
	})
	if errors.Is(err, errReceiptNotExists) {
		return nil, xerrors.Errorf("%s: %w", hash.Hex(), ErrTxNotMined)
	} else if err != nil {
		ctx.WithField("err", err).Error("backend.TransactionReceipt failed")
		return nil, err
	}
	return receipt, nil
}
