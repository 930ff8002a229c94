package usecase

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/xerrors"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/gateway"
	"github.com/x-xyz/nftvault/domain/vault"
)

// ExecuteExternalAction calls target as the vault. Non-owner callers are paid
// the configured share of value once the call went through. The value and the
// reward come out of the surplus only: backing never drops below what the
// effective supply could redeem.
func (im *impl) ExecuteExternalAction(c bCtx.Ctx, caller domain.Address, action gateway.Action) (*vault.ActionResult, error) {
	res := &vault.ActionResult{Reward: new(big.Int)}
	owed := new(big.Int)
	executed := false
	err := im.submit(c, "executeExternalAction", func(t *txn) error {
		reward, err := im.gatewayUC.Check(t.state.Policy, action, caller)
		if err != nil {
			return err
		}
		owed = reward
		backing, err := im.assets.BalanceOf(t.ctx, im.cfg.Address)
		if err != nil {
			return err
		}
		reserve, err := im.shareUC.PreviewRedeem(t.state.Shares, t.state.Shares.Supply().Effective())
		if err != nil {
			return err
		}
		need := new(big.Int).Add(domain.CopyAmount(action.Value), reward)
		if backing.Cmp(new(big.Int).Add(need, reserve)) < 0 {
			return xerrors.Errorf("backing %s, action needs %s over the redeemable %s: %w",
				domain.FormatAmount(backing), domain.FormatAmount(need), domain.FormatAmount(reserve), domain.ErrInsufficientBacking)
		}

		t.effect(func() error {
			out, err := im.executor.Execute(t.ctx, action)
			if err != nil {
				return err
			}
			res.Result = out
			executed = true
			t.emit(vault.Event{
				Type:    vault.EventExternalActionExecuted,
				Account: caller.ToLower(),
				To:      action.Target.ToLower(),
				Assets:  vault.Amount(action.Value),
				Payload: hexutil.Encode(action.Payload),
			})
			return nil
		})
		if reward.Sign() > 0 {
			t.effect(func() error {
				rcpt, err := im.assets.TransferOut(t.ctx, caller, reward)
				if err != nil {
					return err
				}
				res.Reward = reward
				t.emit(vault.Event{
					Type:    vault.EventRewardPaid,
					Account: caller.ToLower(),
					Assets:  vault.Amount(reward),
					Ref:     rcpt.Ref,
				})
				return nil
			})
		}
		return nil
	})
	if err == nil {
		return res, nil
	}
	if !executed {
		return nil, err
	}
	// the action stays committed
	return res, &vault.RewardError{Reward: owed, Err: err}
}

func (im *impl) SetRewardPercentage(c bCtx.Ctx, caller domain.Address, pct uint64) error {
	return im.submit(c, "setRewardPercentage", func(t *txn) error {
		if err := im.gatewayUC.SetRewardPercentage(t.state.Policy, caller, pct); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventParamsUpdated,
			Account: caller.ToLower(),
			Params:  map[string]string{"rewardPercentage": strconv.FormatUint(pct, 10)},
		})
		return nil
	})
}

func (im *impl) AllowTarget(c bCtx.Ctx, caller, target domain.Address) error {
	return im.submit(c, "allowTarget", func(t *txn) error {
		if err := im.gatewayUC.AllowTarget(t.state.Policy, caller, target); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventParamsUpdated,
			Account: caller.ToLower(),
			Params:  map[string]string{"allowTarget": target.ToLowerStr()},
		})
		return nil
	})
}

func (im *impl) DisallowTarget(c bCtx.Ctx, caller, target domain.Address) error {
	return im.submit(c, "disallowTarget", func(t *txn) error {
		if err := im.gatewayUC.DisallowTarget(t.state.Policy, caller, target); err != nil {
			return err
		}
		t.emit(vault.Event{
			Type:    vault.EventParamsUpdated,
			Account: caller.ToLower(),
			Params:  map[string]string{"disallowTarget": target.ToLowerStr()},
		})
		return nil
	})
}
