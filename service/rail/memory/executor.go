package memory

import (
	"sync"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/gateway"
)

// Executor records actions and pays their value out of the vault's ledger balance.
type Executor struct {
	faults

	mu     sync.Mutex
	ledger *Ledger
	calls  []gateway.Action
	result []byte
}

func NewExecutor(ledger *Ledger) *Executor {
	return &Executor{
		ledger: ledger,
		result: []byte{0x01},
	}
}

// Returns sets the result of every following call.
func (e *Executor) Returns(result []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = result
}

func (e *Executor) Execute(c ctx.Ctx, action gateway.Action) ([]byte, error) {
	if err := e.take(OpExecute); err != nil {
		return nil, err
	}
	if domain.IsPositive(action.Value) {
		if _, err := e.ledger.move(e.ledger.vault, action.Target, action.Value, domain.ErrInsufficientBacking); err != nil {
			return nil, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, action)
	return append([]byte(nil), e.result...), nil
}

// Calls returns the executed actions in order.
func (e *Executor) Calls() []gateway.Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]gateway.Action(nil), e.calls...)
}
