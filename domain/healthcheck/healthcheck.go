package healthcheck

import "github.com/x-xyz/nftvault/base/ctx"

// HealthCheckRepo pings the backing services that are configured.
type HealthCheckRepo interface {
	PingDB(ctx ctx.Ctx) error
}

type HealthCheckUsecase interface {
	Check(ctx ctx.Ctx) error
}
