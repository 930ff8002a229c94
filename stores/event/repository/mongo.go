package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/database/mongoclient"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/vault"
	"github.com/x-xyz/nftvault/service/query"
)

type mongoRepo struct {
	q query.Mongo
}

// NewMongo persists events in the vault_events collection.
func NewMongo(q query.Mongo) *mongoRepo {
	return &mongoRepo{q: q}
}

func (r *mongoRepo) Name() string {
	return "mongo"
}

// Init creates the indexes List relies on.
func (r *mongoRepo) Init(c ctx.Ctx) error {
	return r.q.EnsureIndexes(c, domain.TableVaultEvents, []mongo.IndexModel{
		{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "type", Value: 1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "assetId", Value: 1}, {Key: "seq", Value: -1}}},
		{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "account", Value: 1}, {Key: "seq", Value: -1}}},
	})
}

// Store upserts by event id, so a retried batch does not duplicate events.
func (r *mongoRepo) Store(c ctx.Ctx, events []vault.Event) error {
	if len(events) == 0 {
		return nil
	}
	ops := make([]query.UpsertOp, 0, len(events))
	for _, e := range events {
		ops = append(ops, query.UpsertOp{
			Selector: bson.M{"_id": e.Id},
			Updater:  e,
		})
	}
	if _, _, err := r.q.BulkUpsert(c, domain.TableVaultEvents, ops); err != nil {
		c.WithField("err", err).WithField("count", len(events)).Error("q.BulkUpsert failed")
		return err
	}
	return nil
}

type eventFilter struct {
	Vault   domain.Address  `bson:"vault"`
	Type    vault.EventType `bson:"type,omitempty"`
	AssetId *domain.AssetId `bson:"assetId,omitempty"`
	Account domain.Address  `bson:"account,omitempty"`
}

func toFilter(v domain.Address, o vault.EventListOptions) (bson.M, error) {
	f := eventFilter{
		Vault:   v.ToLower(),
		AssetId: o.AssetId,
	}
	if o.Type != nil {
		f.Type = *o.Type
	}
	if o.Account != nil {
		f.Account = o.Account.ToLower()
	}
	return mongoclient.FilterOf(f)
}

func (r *mongoRepo) List(c ctx.Ctx, v domain.Address, opts ...vault.EventListOptionFunc) ([]vault.Event, error) {
	o, err := vault.GetEventListOptions(opts...)
	if err != nil {
		return nil, err
	}
	filter, err := toFilter(v, o)
	if err != nil {
		c.WithField("err", err).Error("toFilter failed")
		return nil, err
	}

	res := []vault.Event{}
	if err := r.q.Search(c, domain.TableVaultEvents, o.Offset, o.Limit, "-seq", filter, &res); err != nil {
		c.WithField("err", err).Error("q.Search failed")
		return nil, err
	}
	return res, nil
}

func (r *mongoRepo) Get(c ctx.Ctx, v domain.Address, seq uint64) (*vault.Event, error) {
	res := vault.Event{}
	err := r.q.FindOne(c, domain.TableVaultEvents, bson.M{"vault": v.ToLower(), "seq": seq}, &res)
	if errors.Is(err, query.ErrNotFound) {
		return nil, xerrors.Errorf("event %d: %w", seq, domain.ErrNotFound)
	} else if err != nil {
		c.WithField("err", err).Error("q.FindOne failed")
		return nil, err
	}
	return &res, nil
}
