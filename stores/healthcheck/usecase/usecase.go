package usecase

import (
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/x-xyz/nftvault/base/ctx"
	hcdomain "github.com/x-xyz/nftvault/domain/healthcheck"
)

const checkTimeout = 5 * time.Second

// Probe is an extra named dependency check, such as the chain rpc.
type Probe struct {
	Name  string
	Check func(ctx ctx.Ctx) error
}

type impl struct {
	repo   hcdomain.HealthCheckRepo
	probes []Probe
}

// New creates new healthCheckUsecase object representation of HealthCheckUsecase interface
func New(repo hcdomain.HealthCheckRepo, probes ...Probe) hcdomain.HealthCheckUsecase {
	return &impl{
		repo:   repo,
		probes: probes,
	}
}

// Check runs the database ping and every probe concurrently and returns the
// first failure.
func (im *impl) Check(context ctx.Ctx) error {
	tctx, cancel := ctx.WithTimeout(context, checkTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(tctx.Context)
	c := ctx.Ctx{Context: gctx, Logger: context.Logger}

	g.Go(func() error {
		return im.repo.PingDB(c)
	})
	for _, p := range im.probes {
		p := p
		g.Go(func() error {
			if err := p.Check(c); err != nil {
				c.WithField("err", err).WithField("probe", p.Name).Error("health probe failed")
				return xerrors.Errorf("%s: %w", p.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
