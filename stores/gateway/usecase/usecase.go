package usecase

import (
	"math/big"

	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/gateway"
)

var hundred = big.NewInt(100)

type impl struct {
	vault     domain.Address
	owner     domain.Address
	protected map[domain.Address]bool
}

// New returns the external action rules of a vault. Calls to a protected
// target are always refused.
func New(vault, owner domain.Address, protected ...domain.Address) gateway.UseCase {
	im := &impl{
		vault:     vault,
		owner:     owner,
		protected: make(map[domain.Address]bool, len(protected)),
	}
	for _, a := range protected {
		im.protected[a.ToLower()] = true
	}
	return im
}

// checkTarget refuses the vault itself and the contracts holding its property.
func (im *impl) checkTarget(target domain.Address) error {
	if target.IsEmpty() || !target.IsValid() {
		return xerrors.Errorf("target %q: %w", target, domain.ErrInvalidTarget)
	}
	if target.Equals(im.vault) {
		return domain.ErrSelfCall
	}
	if im.protected[target.ToLower()] {
		return xerrors.Errorf("target %s holds vault assets: %w", target, domain.ErrInvalidTarget)
	}
	return nil
}

func (im *impl) checkOwner(caller domain.Address) error {
	if !caller.Equals(im.owner) {
		return xerrors.Errorf("%s is not the owner: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

func (im *impl) Check(p *gateway.Policy, action gateway.Action, caller domain.Address) (*big.Int, error) {
	if err := im.checkTarget(action.Target); err != nil {
		return nil, err
	}
	if caller.IsEmpty() {
		return nil, domain.ErrInvalidAddress
	}
	isOwner := caller.Equals(im.owner)
	// only the owner may act without an allow-list
	if len(p.AllowList) == 0 && !isOwner {
		return nil, xerrors.Errorf("no allowed targets for %s: %w", caller, domain.ErrInvalidTarget)
	}
	if len(p.AllowList) > 0 && !p.AllowList[action.Target.ToLower()] {
		return nil, xerrors.Errorf("target %s not allowed: %w", action.Target, domain.ErrInvalidTarget)
	}
	value := domain.CopyAmount(action.Value)
	if value.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}

	if isOwner || p.RewardPercentage == 0 {
		return new(big.Int), nil
	}
	reward := value.Mul(value, new(big.Int).SetUint64(p.RewardPercentage))
	return reward.Quo(reward, hundred), nil
}

func (im *impl) SetRewardPercentage(p *gateway.Policy, caller domain.Address, pct uint64) error {
	if err := im.checkOwner(caller); err != nil {
		return err
	}
	if pct > gateway.MaxRewardPercentage {
		return xerrors.Errorf("%d > %d: %w", pct, gateway.MaxRewardPercentage, domain.ErrInvalidRewardPercentage)
	}
	p.RewardPercentage = pct
	return nil
}

func (im *impl) AllowTarget(p *gateway.Policy, caller, target domain.Address) error {
	if err := im.checkOwner(caller); err != nil {
		return err
	}
	if err := im.checkTarget(target); err != nil {
		return err
	}
	p.AllowList[target.ToLower()] = true
	return nil
}

func (im *impl) DisallowTarget(p *gateway.Policy, caller, target domain.Address) error {
	if err := im.checkOwner(caller); err != nil {
		return err
	}
	delete(p.AllowList, target.ToLower())
	return nil
}
