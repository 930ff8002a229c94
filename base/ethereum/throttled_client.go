package ethereum

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
)

// ThrottledClient allows at most n rpc calls in flight.
type ThrottledClient struct {
	*ethclient.Client
	tokens chan int
}

func NewThrottledClient(client *ethclient.Client, n int) *ThrottledClient {
	tokens := make(chan int, n)
	for i := 0; i < n; i++ {
		tokens <- i + 1
	}
	return &ThrottledClient{
		Client: client,
		tokens: tokens,
	}
}

func (c *ThrottledClient) BalanceAt(ctx context.Context, account common.Address, number *big.Int) (*big.Int, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.BalanceAt(ctx, account, number)
}

func (c *ThrottledClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.PendingNonceAt(ctx, account)
}

func (c *ThrottledClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.SuggestGasPrice(ctx)
}

func (c *ThrottledClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.EstimateGas(ctx, msg)
}

func (c *ThrottledClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.SendTransaction(ctx, tx)
}

func (c *ThrottledClient) CallContract(ctx context.Context, msg ethereum.CallMsg, number *big.Int) ([]byte, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.CallContract(ctx, msg, number)
}

func (c *ThrottledClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.TransactionByHash(ctx, hash)
}

func (c *ThrottledClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.TransactionReceipt(ctx, hash)
}

func (c *ThrottledClient) before(ctx context.Context) int {
	now := time.Now()
	logger := bCtx.From(ctx)
	select {
	case <-ctx.Done():
		logger.WithField("wait", time.Since(now)).Debug("throttle ctx done")
		return 0
	case token := <-c.tokens:
		logger.WithFields(log.Fields{
			"token": token,
			"free":  len(c.tokens),
			"wait":  time.Since(now),
		}).Debug("throttle acquired")
		return token
	}
}

func (c *ThrottledClient) after(token int) {
	if token != 0 {
		c.tokens <- token
	}
}

func (c *ThrottledClient) BlockNumber(ctx context.Context) (uint64, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.BlockNumber(ctx)
}

func (c *ThrottledClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	token := c.before(ctx)
	defer c.after(token)
	return c.Client.FilterLogs(ctx, q)
}
