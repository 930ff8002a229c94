package repository

import (
	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/domain/vault"
)

type logRepo struct {
	logger log.Logger
}

// NewLog writes every event to logger.
func NewLog(logger log.Logger) *logRepo {
	return &logRepo{logger: logger}
}

func (r *logRepo) Name() string {
	return "log"
}

func (r *logRepo) Store(_ ctx.Ctx, events []vault.Event) error {
	for _, e := range events {
		l := r.logger.WithFields(log.Fields{
			"vault": e.Vault,
			"seq":   e.Seq,
			"type":  e.Type,
		})
		if e.Account != "" {
			l = l.WithField("account", e.Account)
		}
		if e.AssetId != nil {
			l = l.WithField("assetId", *e.AssetId)
		}
		l.Info("vault event")
	}
	return nil
}
