package evm

import (
	"github.com/ethereum/go-ethereum"
	"golang.org/x/xerrors"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain/gateway"
)

// Executor performs external actions as call transactions from the vault.
type Executor struct {
	client *Client
}

func NewExecutor(client *Client) *Executor {
	return &Executor{client: client}
}

// Execute simulates the call to capture its return data, then sends it. A call
// that reverts in simulation is never broadcast.
func (e *Executor) Execute(ctx bCtx.Ctx, action gateway.Action) ([]byte, error) {
	to := action.Target.ToCommon()
	result, err := e.client.backend.CallContract(ctx, ethereum.CallMsg{
		From:  e.client.vault,
		To:    &to,
		Value: action.Value,
		Data:  action.Payload,
	}, nil)
	if err != nil {
		ctx.WithField("err", err).Warn("external action simulation failed")
		return nil, xerrors.Errorf("simulate %s: %w", action.Target, ErrTxReverted)
	}
	if _, err := e.client.Send(ctx, to, action.Value, action.Payload); err != nil {
		return nil, err
	}
	return result, nil
}
