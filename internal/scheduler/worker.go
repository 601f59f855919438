// internal/scheduler/worker.go
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/modbus-poller/internal/model"
)

func (o *Orchestrator) start(ctx context.Context, id int64) *worker {
	wctx, cancel := context.WithCancel(ctx)
	w := &worker{id: id, cancel: cancel, done: make(chan struct{})}

	go o.runWorker(wctx, w)

	return w
}

// runWorker owns one device until cancelled, disabled or deleted.
// A cycle is never interrupted: cancellation is observed between cycles.
func (o *Orchestrator) runWorker(ctx context.Context, w *worker) {
	log := o.log.With().Int64("device_id", w.id).Logger()

	defer close(w.done)
	defer o.tracker.Disable(w.id)

	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	if !sleep(ctx, Stagger(w.id)) {
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		dev, err := o.source.GetDevice(ctx, w.id)
		switch {
		case errors.Is(err, model.ErrDeviceNotFound):
			log.Info().Msg("device removed")
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msg("device lookup failed")
			if !sleep(ctx, o.cfg.DefaultInterval) {
				return
			}
			continue
		case !dev.Enabled:
			log.Info().Msg("device disabled")
			return
		}

		started := time.Now()
		o.cycle(ctx, dev)

		if !sleep(ctx, Pace(o.interval(dev), time.Since(started))) {
			return
		}
	}
}

// cycle polls and persists one snapshot. It ignores cancellation of ctx
// so a cycle in flight always completes.
func (o *Orchestrator) cycle(ctx context.Context, dev model.DeviceConfig) model.PollSnapshot {
	cctx := context.WithoutCancel(ctx)
	started := time.Now()

	snap := o.poller.PollOnce(cctx, dev)

	if err := o.sink.AppendSnapshot(cctx, snap); err != nil {
		o.log.Error().Int64("device_id", dev.ID).Err(err).Msg("persist snapshot failed")
	}

	o.tracker.Observe(snap)
	o.metrics.ObservePoll(snap.OK, time.Since(started))

	return snap
}

func (o *Orchestrator) interval(dev model.DeviceConfig) time.Duration {
	if dev.PollIntervalMs <= 0 {
		return o.cfg.DefaultInterval
	}
	d := time.Duration(dev.PollIntervalMs) * time.Millisecond
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Stagger is the one-time startup offset of a device worker.
func Stagger(id int64) time.Duration {
	slot := id % staggerSlots
	if slot < 0 {
		slot = -slot
	}
	return time.Duration(slot) * staggerStep
}

// Pace is the sleep before the next cycle. Never negative.
func Pace(interval, elapsed time.Duration) time.Duration {
	if d := interval - elapsed; d > 0 {
		return d
	}
	return 0
}

// sleep waits for d or ctx. It reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
