// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/modbus-poller/internal/metrics"
	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/status"
)

// Floors and defaults.
const (
	MinRefresh      = 500 * time.Millisecond
	MinInterval     = 100 * time.Millisecond
	DefaultRefresh  = 5 * time.Second
	DefaultInterval = time.Second

	staggerStep  = 50 * time.Millisecond
	staggerSlots = 10
)

var errMissingDeps = errors.New("scheduler: source, sink and poller are required")

// DeviceSource is the read side of the configuration store.
type DeviceSource interface {
	ListEnabledDevices(ctx context.Context, limit int) ([]model.DeviceConfig, error)
	GetDevice(ctx context.Context, id int64) (model.DeviceConfig, error)
}

// SnapshotSink receives every snapshot produced by a cycle.
type SnapshotSink interface {
	AppendSnapshot(ctx context.Context, snap model.PollSnapshot) error
}

// Poller performs one cycle. It must never panic and never fail.
type Poller interface {
	PollOnce(ctx context.Context, dev model.DeviceConfig) model.PollSnapshot
}

// Config controls pacing.
type Config struct {
	Refresh         time.Duration // reconciliation cadence
	DefaultInterval time.Duration // used when a device has no interval
	MaxDevices      int           // 0 = unlimited
}

// Options carries optional collaborators.
type Options struct {
	Tracker *status.Tracker
	Metrics *metrics.Recorder
	Logger  zerolog.Logger
}

type worker struct {
	id     int64
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator owns the set of per-device workers.
// Only Reconcile and Run mutate the worker map.
type Orchestrator struct {
	cfg    Config
	source DeviceSource
	sink   SnapshotSink
	poller Poller

	tracker *status.Tracker
	metrics *metrics.Recorder
	log     zerolog.Logger

	reconcileMu sync.Mutex

	mu      sync.RWMutex
	workers map[int64]*worker
}

// New builds an orchestrator. Floors are applied here.
func New(cfg Config, source DeviceSource, sink SnapshotSink, poller Poller, opts Options) (*Orchestrator, error) {
	if source == nil || sink == nil || poller == nil {
		return nil, errMissingDeps
	}

	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Refresh < MinRefresh {
		cfg.Refresh = MinRefresh
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultInterval
	}
	if cfg.DefaultInterval < MinInterval {
		cfg.DefaultInterval = MinInterval
	}
	if cfg.MaxDevices < 0 {
		cfg.MaxDevices = 0
	}

	return &Orchestrator{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		poller:  poller,
		tracker: opts.Tracker,
		metrics: opts.Metrics,
		log:     opts.Logger,
		workers: make(map[int64]*worker),
	}, nil
}

// Run reconciles on a fixed cadence until ctx is cancelled,
// then stops every worker and waits for in-flight cycles.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.stopAll()

	o.log.Info().Dur("refresh", o.cfg.Refresh).Msg("scheduler started")

	ticker := time.NewTicker(o.cfg.Refresh)
	defer ticker.Stop()

	for {
		if err := o.Reconcile(ctx); err != nil && ctx.Err() == nil {
			o.log.Error().Err(err).Msg("reconcile failed")
		}

		select {
		case <-ctx.Done():
			o.log.Info().Msg("scheduler stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// Reconcile aligns the worker set with the enabled devices.
// Workers started here live until ctx is cancelled or they stop themselves.
// On a listing error the current set is kept.
func (o *Orchestrator) Reconcile(ctx context.Context) error {
	o.reconcileMu.Lock()
	defer o.reconcileMu.Unlock()

	devs, err := o.source.ListEnabledDevices(ctx, o.cfg.MaxDevices)
	if err != nil {
		return err
	}

	want := make(map[int64]struct{}, len(devs))
	for _, d := range devs {
		want[d.ID] = struct{}{}
	}

	o.mu.Lock()
	for id, w := range o.workers {
		select {
		case <-w.done:
			// exited on its own (disabled or deleted between reconciles)
			delete(o.workers, id)
		default:
		}
	}

	var stopping []*worker
	for id, w := range o.workers {
		if _, ok := want[id]; !ok {
			stopping = append(stopping, w)
		}
	}
	o.mu.Unlock()

	for _, w := range stopping {
		w.cancel()
	}
	for _, w := range stopping {
		<-w.done
		o.log.Info().Int64("device_id", w.id).Msg("worker removed")
	}

	o.mu.Lock()
	for _, w := range stopping {
		delete(o.workers, w.id)
	}
	for id := range want {
		if _, ok := o.workers[id]; ok {
			continue
		}
		o.workers[id] = o.start(ctx, id)
	}
	n := len(o.workers)
	o.mu.Unlock()

	o.metrics.SetWorkers(n)

	return nil
}

// Running returns the tracked device ids in ascending order.
func (o *Orchestrator) Running() []int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]int64, 0, len(o.workers))
	for id := range o.workers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RunOnce polls every enabled device once, concurrently,
// and returns after every snapshot has been persisted.
func (o *Orchestrator) RunOnce(ctx context.Context) ([]model.PollSnapshot, error) {
	devs, err := o.source.ListEnabledDevices(ctx, o.cfg.MaxDevices)
	if err != nil {
		return nil, err
	}

	snaps := make([]model.PollSnapshot, len(devs))

	var g errgroup.Group
	for i, dev := range devs {
		i, dev := i, dev
		g.Go(func() error {
			snaps[i] = o.cycle(ctx, dev)
			return nil
		})
	}
	_ = g.Wait()

	return snaps, nil
}

func (o *Orchestrator) stopAll() {
	o.reconcileMu.Lock()
	defer o.reconcileMu.Unlock()

	o.mu.Lock()
	all := make([]*worker, 0, len(o.workers))
	for _, w := range o.workers {
		all = append(all, w)
	}
	o.mu.Unlock()

	for _, w := range all {
		w.cancel()
	}
	for _, w := range all {
		<-w.done
	}

	o.mu.Lock()
	o.workers = make(map[int64]*worker)
	o.mu.Unlock()

	o.metrics.SetWorkers(0)
}
