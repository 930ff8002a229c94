package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/x-xyz/nftvault/base/ctx"
)

type repoFunc func(ctx.Ctx) error

func (f repoFunc) PingDB(c ctx.Ctx) error { return f(c) }

func TestCheck(t *testing.T) {
	req := require.New(t)
	c := ctx.Background()
	errDB := errors.New("db down")
	errRpc := errors.New("rpc down")
	ok := func(ctx.Ctx) error { return nil }

	cases := []struct {
		desc   string
		repo   repoFunc
		probes []Probe
		want   error
	}{
		{"healthy", ok, []Probe{{"rpc", ok}}, nil},
		{"db fails", func(ctx.Ctx) error { return errDB }, []Probe{{"rpc", ok}}, errDB},
		{"probe fails", ok, []Probe{{"rpc", ok}, {"rpc2", func(ctx.Ctx) error { return errRpc }}}, errRpc},
	}
	for _, cs := range cases {
		err := New(cs.repo, cs.probes...).Check(c)
		if cs.want == nil {
			req.NoError(err, cs.desc)
		} else {
			req.ErrorIs(err, cs.want, cs.desc)
		}
	}
}

func TestCheckCancelsSlowProbes(t *testing.T) {
	req := require.New(t)
	errDB := errors.New("db down")
	slow := Probe{"slow", func(c ctx.Ctx) error {
		<-c.Done()
		return c.Err()
	}}

	err := New(repoFunc(func(ctx.Ctx) error { return errDB }), slow).Check(ctx.Background())
	req.ErrorIs(err, errDB)
}
