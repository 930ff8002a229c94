package vault

import (
	"math/big"
	"time"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/domain"
)

type EventType string

const (
	EventMinted                 EventType = "Minted"
	EventRedeemed               EventType = "Redeemed"
	EventLocked                 EventType = "Locked"
	EventTransferred            EventType = "Transferred"
	EventApproval               EventType = "Approval"
	EventProposalSubmitted      EventType = "ProposalSubmitted"
	EventProposalApproved       EventType = "ProposalApproved"
	EventProposalRejected       EventType = "ProposalRejected"
	EventAuctionStarted         EventType = "AuctionStarted"
	EventAuctionCancelled       EventType = "AuctionCancelled"
	EventBidAccepted            EventType = "BidAccepted"
	EventAssetDeposited         EventType = "AssetDeposited"
	EventAssetWithdrawn         EventType = "AssetWithdrawn"
	EventRewardPaid             EventType = "RewardPaid"
	EventExternalActionExecuted EventType = "ExternalActionExecuted"
	EventParamsUpdated          EventType = "ParamsUpdated"
)

// Event is a notification of one committed mutation. Amounts are decimal strings.
type Event struct {
	Id    string         `json:"id" bson:"_id"`
	Vault domain.Address `json:"vault" bson:"vault"`
	// Seq increases by one for every event of a vault
	Seq  uint64    `json:"seq" bson:"seq"`
	Type EventType `json:"type" bson:"type"`
	Time time.Time `json:"time" bson:"time"`

	Account domain.Address `json:"account,omitempty" bson:"account,omitempty"`
	To      domain.Address `json:"to,omitempty" bson:"to,omitempty"`

	AssetId    *domain.AssetId   `json:"assetId,omitempty" bson:"assetId,omitempty"`
	ProposalId domain.ProposalId `json:"proposalId,omitempty" bson:"proposalId,omitempty"`
	AuctionId  domain.AuctionId  `json:"auctionId,omitempty" bson:"auctionId,omitempty"`

	Tokens     string `json:"tokens,omitempty" bson:"tokens,omitempty"`
	Assets     string `json:"assets,omitempty" bson:"assets,omitempty"`
	StartPrice string `json:"startPrice,omitempty" bson:"startPrice,omitempty"`
	EndPrice   string `json:"endPrice,omitempty" bson:"endPrice,omitempty"`
	Price      string `json:"price,omitempty" bson:"price,omitempty"`

	Ref     string            `json:"ref,omitempty" bson:"ref,omitempty"`
	Payload string            `json:"payload,omitempty" bson:"payload,omitempty"`
	Params  map[string]string `json:"params,omitempty" bson:"params,omitempty"`
}

// WithAsset sets AssetId.
func (e Event) WithAsset(assetId domain.AssetId) Event {
	e.AssetId = &assetId
	return e
}

// Amount renders an amount for an event field.
func Amount(a *big.Int) string {
	return domain.FormatAmount(a)
}

// EventSink receives committed events. Delivery failures never reach the vault.
type EventSink interface {
	Publish(ctx ctx.Ctx, events ...Event)
}

// EventRepo is one backend the events are fanned out to.
type EventRepo interface {
	Name() string
	Store(ctx ctx.Ctx, events []Event) error
}

type EventListOptions struct {
	Type    *EventType
	AssetId *domain.AssetId
	Account *domain.Address
	Offset  int
	Limit   int
}

type EventListOptionFunc func(*EventListOptions) error

func GetEventListOptions(opts ...EventListOptionFunc) (EventListOptions, error) {
	res := EventListOptions{Limit: 50}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func WithEventType(t EventType) EventListOptionFunc {
	return func(o *EventListOptions) error {
		o.Type = &t
		return nil
	}
}

func WithEventAsset(assetId domain.AssetId) EventListOptionFunc {
	return func(o *EventListOptions) error {
		o.AssetId = &assetId
		return nil
	}
}

func WithEventAccount(account domain.Address) EventListOptionFunc {
	return func(o *EventListOptions) error {
		a := account.ToLower()
		o.Account = &a
		return nil
	}
}

func WithPagination(offset, limit int) EventListOptionFunc {
	return func(o *EventListOptions) error {
		if offset < 0 || limit <= 0 || limit > 500 {
			return domain.ErrBadParamInput
		}
		o.Offset = offset
		o.Limit = limit
		return nil
	}
}

// EventStore lists persisted events, newest first.
type EventStore interface {
	List(ctx ctx.Ctx, vault domain.Address, opts ...EventListOptionFunc) ([]Event, error)
	// Get finds the event with the given sequence number
	Get(ctx ctx.Ctx, vault domain.Address, seq uint64) (*Event, error)
}

// EventUseCase dispatches events to every repo and serves listings.
type EventUseCase interface {
	EventSink
	List(ctx ctx.Ctx, vault domain.Address, opts ...EventListOptionFunc) ([]Event, error)
	Get(ctx ctx.Ctx, vault domain.Address, seq uint64) (*Event, error)
	// Wait blocks until every scheduled delivery finished
	Wait()
	// Close waits for pending deliveries and stops the workers
	Close()
}
