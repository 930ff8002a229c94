package gateway

import (
	"math/big"
	"sort"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

// MaxRewardPercentage caps the incentive paid to non-owner callers.
const MaxRewardPercentage = 5

// Policy is the mutable gateway configuration of a vault.
type Policy struct {
	RewardPercentage uint64
	// empty lets only the owner act, on any unprotected target
	AllowList map[domain.Address]bool
}

func NewPolicy(rewardPercentage uint64, allowList []domain.Address) *Policy {
	p := &Policy{
		RewardPercentage: rewardPercentage,
		AllowList:        map[domain.Address]bool{},
	}
	for _, a := range allowList {
		p.AllowList[a.ToLower()] = true
	}
	return p
}

func (p *Policy) Clone() *Policy {
	c := &Policy{
		RewardPercentage: p.RewardPercentage,
		AllowList:        make(map[domain.Address]bool, len(p.AllowList)),
	}
	for a := range p.AllowList {
		c.AllowList[a] = true
	}
	return c
}

// Targets returns the allow-list sorted.
func (p *Policy) Targets() []domain.Address {
	res := make([]domain.Address, 0, len(p.AllowList))
	for a := range p.AllowList {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Action is an external call made with the vault as principal.
type Action struct {
	Target  domain.Address `json:"target"`
	Value   *big.Int       `json:"value"`
	Payload []byte         `json:"payload"`
}

// Executor performs the call on the external system.
type Executor interface {
	Execute(ctx ctx.Ctx, action Action) ([]byte, error)
}

type UseCase interface {
	// Check validates the action and returns the reward owed to caller
	Check(p *Policy, action Action, caller domain.Address) (*big.Int, error)
	SetRewardPercentage(p *Policy, caller domain.Address, pct uint64) error
	AllowTarget(p *Policy, caller, target domain.Address) error
	DisallowTarget(p *Policy, caller, target domain.Address) error
}
