// internal/publish/fanout.go
package publish

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// DefaultQueueSize bounds the snapshots waiting for publishers.
const DefaultQueueSize = 256

// Publisher receives snapshots after they are persisted.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, snap model.PollSnapshot) error
	Close() error
}

// Store is the persistence side of a fan-out.
type Store interface {
	AppendSnapshot(ctx context.Context, snap model.PollSnapshot) error
}

// Fanout persists first, then queues the snapshot for publishing.
// Publishing runs on one goroutine off the poll path: a slow or
// unreachable publisher never delays AppendSnapshot. When the queue
// is full the snapshot is dropped for publishing and logged.
type Fanout struct {
	store      Store
	publishers []Publisher
	log        zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan model.PollSnapshot
	done   chan struct{}
}

func NewFanout(store Store, log zerolog.Logger, publishers ...Publisher) *Fanout {
	return NewFanoutSize(store, log, DefaultQueueSize, publishers...)
}

// NewFanoutSize is NewFanout with an explicit queue bound.
func NewFanoutSize(store Store, log zerolog.Logger, size int, publishers ...Publisher) *Fanout {
	if size <= 0 {
		size = DefaultQueueSize
	}

	f := &Fanout{
		store:      store,
		publishers: publishers,
		log:        log,
		done:       make(chan struct{}),
	}

	if len(publishers) == 0 {
		close(f.done)
		return f
	}

	f.queue = make(chan model.PollSnapshot, size)
	go f.drain()

	return f
}

func (f *Fanout) AppendSnapshot(ctx context.Context, snap model.PollSnapshot) error {
	if err := f.store.AppendSnapshot(ctx, snap); err != nil {
		return err
	}

	if f.queue == nil {
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil
	}

	select {
	case f.queue <- snap:
	default:
		f.log.Warn().Int64("device_id", snap.DeviceID).Msg("publish queue full, snapshot dropped")
	}

	return nil
}

func (f *Fanout) drain() {
	defer close(f.done)

	for snap := range f.queue {
		for _, p := range f.publishers {
			if err := p.Publish(context.Background(), snap); err != nil {
				f.log.Warn().
					Str("publisher", p.Name()).
					Int64("device_id", snap.DeviceID).
					Err(err).
					Msg("publish failed")
			}
		}
	}
}

// Close flushes queued snapshots, then closes every publisher.
// The store is not owned. Later appends still persist but are not published.
func (f *Fanout) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.queue != nil {
		close(f.queue)
	}
	f.mu.Unlock()

	<-f.done

	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
