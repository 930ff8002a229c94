package usecase

import (
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/vault"
)

// txn is one mutation in flight. It works on a private clone of the state;
// effects run after the logic succeeded and the ledger invariants hold.
type txn struct {
	ctx     bCtx.Ctx
	now     time.Time
	state   *vault.State
	events  []vault.Event
	effects []func() error
	applied int
}

func (t *txn) emit(e vault.Event) {
	t.events = append(t.events, e)
}

// effect registers an external call. Effects run in order; once one has run
// the mutation commits even if a later one fails.
func (t *txn) effect(f func() error) {
	t.effects = append(t.effects, f)
}

type request struct {
	name string
	ctx  bCtx.Ctx
	fn   func(t *txn) error
	done chan error
}

// submit hands fn to the writer and waits for it. ctx only bounds the wait
// for the writer to pick the request up.
func (im *impl) submit(c bCtx.Ctx, name string, fn func(t *txn) error) error {
	r := &request{
		name: name,
		ctx:  c,
		fn:   fn,
		done: make(chan error, 1),
	}
	select {
	case <-im.quit:
		return domain.ErrVaultClosed
	default:
	}
	if err := c.Err(); err != nil {
		return err
	}
	select {
	case im.reqs <- r:
	case <-c.Done():
		return c.Err()
	case <-im.quit:
		return domain.ErrVaultClosed
	}
	return <-r.done
}

func (im *impl) loop() {
	for {
		select {
		case r := <-im.reqs:
			im.apply(r)
		case <-im.quit:
			return
		}
	}
}

func (im *impl) apply(r *request) {
	defer im.met.BumpTime("op.time", "op", r.name).End()

	// accepted requests run to completion, so effects keep the caller's
	// values but not its cancellation
	c := bCtx.Detach(bCtx.WithLogger(r.ctx, r.ctx.Logger.WithField("op", r.name)))
	t := &txn{
		ctx:   c,
		now:   im.clock.Now(),
		state: im.load().Clone(),
	}

	commit, err := im.run(r, t)
	status := "ok"
	if err != nil {
		status = "err"
		c.WithField("err", err).Info("vault op rejected")
	}
	im.met.BumpSum("op.count", 1, "op", r.name, "status", status)

	if commit {
		for i := range t.events {
			t.state.Seq++
			e := &t.events[i]
			e.Id = uuid.NewString()
			e.Vault = im.cfg.Address.ToLower()
			e.Seq = t.state.Seq
			e.Time = t.now
		}
		im.snapshot.Store(t.state)
		if len(t.events) > 0 {
			im.sink.Publish(c, t.events...)
		}
	}
	r.done <- err
}

func (im *impl) run(r *request, t *txn) (commit bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			t.ctx.WithFields(log.Fields{
				"panic": p,
				"stack": string(debug.Stack()),
			}).Error("vault op panicked")
			commit = t.applied > 0
			err = xerrors.Errorf("%s panicked: %w", r.name, domain.ErrInternalServerError)
		}
	}()

	if err := r.fn(t); err != nil {
		return false, err
	}
	if err := im.shareUC.CheckInvariants(t.state.Shares); err != nil {
		t.ctx.WithField("err", err).Error("share invariants broken, mutation dropped")
		return false, err
	}
	for _, effect := range t.effects {
		if err := effect(); err != nil {
			if t.applied > 0 {
				t.ctx.WithFields(log.Fields{
					"err":     err,
					"applied": t.applied,
				}).Error("effect failed after earlier effects ran")
			}
			return t.applied > 0, err
		}
		t.applied++
	}
	return true, nil
}
