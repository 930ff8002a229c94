package tracker

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/base/metrics"
)

const (
	TooManyLogsTimeout = 30 * time.Second
	defaultInterval    = 10 * time.Second
)

// LogSource is the part of an rpc client the tracker reads.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

type EventHandler interface {
	GetFilterTopics() [][]common.Hash
	ProcessEvents(bCtx.Ctx, []types.Log) error
}

// Config of a log tracker.
type Config struct {
	Enabled bool `mapstructure:"enabled"`
	// StartBlock is the first block scanned. 0 starts at the confirmed head.
	StartBlock     uint64        `mapstructure:"startBlock"`
	FollowDistance uint64        `mapstructure:"followDistance"`
	MaxRange       uint64        `mapstructure:"maxRange"`
	Interval       time.Duration `mapstructure:"interval"`
}

type LogTrackerCfg struct {
	Config
	Source   LogSource
	Contract common.Address
	Handler  EventHandler
	Metrics  metrics.Service
}

// LogTracker polls the logs of one contract and hands confirmed ones to its
// handler in block order.
type LogTracker struct {
	source         LogSource
	handler        EventHandler
	met            metrics.Service
	contract       common.Address
	followDistance uint64
	maxRange       uint64
	interval       time.Duration

	// next is the first block not processed yet
	next    uint64
	started bool
}

func NewLogTracker(cfg *LogTrackerCfg) *LogTracker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	met := cfg.Metrics
	if met == nil {
		met = metrics.Nop()
	}
	return &LogTracker{
		source:         cfg.Source,
		handler:        cfg.Handler,
		met:            met,
		contract:       cfg.Contract,
		followDistance: cfg.FollowDistance,
		maxRange:       cfg.MaxRange,
		interval:       interval,
		next:           cfg.StartBlock,
	}
}

// NextBlock is the first block the tracker has not processed.
func (f *LogTracker) NextBlock() uint64 {
	return f.next
}

// Run polls until ctx is done. A failed poll is retried on the next tick.
func (f *LogTracker) Run(ctx bCtx.Ctx) error {
	ctx = bCtx.WithValue(ctx, "contract", f.contract.Hex())
	ctx.WithField("next", f.next).Info("tracker started")
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		if err := f.Poll(ctx); err != nil {
			f.met.BumpSum("poll.err", 1)
			ctx.WithField("err", err).Error("f.Poll failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll processes every confirmed block after the last processed one.
func (f *LogTracker) Poll(ctx bCtx.Ctx) error {
	head, err := f.source.BlockNumber(ctx)
	if err != nil {
		ctx.WithField("err", err).Error("source.BlockNumber failed")
		return err
	}
	f.met.BumpAvg("lastBlock", float64(head))
	if head < f.followDistance {
		return nil
	}
	target := head - f.followDistance
	if !f.started {
		if f.next == 0 {
			f.next = target + 1
		}
		f.started = true
	}
	if target < f.next {
		return nil
	}
	for _, r := range chunk(f.next, target, f.maxRange) {
		if err := f.processBlkRange(ctx, r); err != nil {
			return err
		}
	}
	f.met.BumpAvg("processedBlock", float64(f.next-1))
	return nil
}

// processBlkRange halves a range whenever the rpc refuses it, and advances
// next after each sub range is handled.
func (f *LogTracker) processBlkRange(ctx bCtx.Ctx, blkRange *blockRange) error {
	ranges := []*blockRange{blkRange}
	for len(ranges) > 0 {
		idx := len(ranges) - 1
		r := ranges[idx]
		ranges = ranges[:idx]

		q := ethereum.FilterQuery{
			FromBlock: r.begin,
			ToBlock:   r.end,
			Addresses: []common.Address{f.contract},
			Topics:    f.handler.GetFilterTopics(),
		}
		tCtx, cancel := bCtx.WithTimeout(ctx, TooManyLogsTimeout)
		logs, err := f.source.FilterLogs(tCtx, q)
		cancel()
		if err != nil {
			if r.single() {
				ctx.WithFields(log.Fields{
					"err":   err,
					"range": r.String(),
				}).Error("failed to get logs within one block")
				return err
			}
			r1, r2 := r.split()
			ranges = append(ranges, r2, r1)
			ctx.WithFields(log.Fields{
				"err":           err,
				"originalRange": r.String(),
				"range1":        r1.String(),
				"range2":        r2.String(),
			}).Info("splitting blockRange")
			continue
		}

		if len(logs) > 0 {
			ctx.WithFields(log.Fields{
				"range": r.String(),
				"#logs": len(logs),
			}).Info("received logs")
			if err := f.handler.ProcessEvents(ctx, logs); err != nil {
				ctx.WithField("err", err).Error("handler.ProcessEvents failed")
				return err
			}
		}
		f.next = r.end.Uint64() + 1
	}
	return nil
}
