package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m2mobi/apnsd/internal/journal"
	"github.com/m2mobi/apnsd/internal/push"
	"github.com/m2mobi/apnsd/internal/store"
	logpkg "github.com/m2mobi/apnsd/pkg/log"
)

// Engine is the per-worker delivery engine boundary. push.Client satisfies
// it; tests substitute fakes.
type Engine interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Add(m *push.Message)
	Send(ctx context.Context) error
	Errors() []push.DeliveryError
}

// EngineFactory builds the engine for one worker index. An error degrades
// the pool by one worker; it does not fail Start.
type EngineFactory func(workerIndex int) (Engine, error)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultWorkerCount   = 3
	DefaultQueueCapacity = 1 << 20
	DefaultIdleInterval  = 200 * time.Millisecond
)

// Options configures a Dispatcher.
type Options struct {
	// WorkerCount is the pool size. Non-positive values are ignored and
	// the default applies.
	WorkerCount int
	// QueueCapacity is the shared store byte budget across all slots.
	QueueCapacity int
	// IdleInterval is how long a worker with an empty slot sleeps before
	// re-polling.
	IdleInterval time.Duration
	// Engines builds the per-worker delivery engine. Required.
	Engines EngineFactory
	// Journal, when set, receives every delivery failure for post-mortem
	// inspection. Optional.
	Journal *journal.Journal
	Logger  logpkg.Logger
}

// workerRecord tracks one spawned worker from the supervisor side.
type workerRecord struct {
	index int
	id    string
}

type exitEvent struct {
	index int
	err   error
}

// Dispatcher owns the shared store, the guard, and the worker pool.
type Dispatcher struct {
	logger logpkg.Logger

	st      *store.Store
	guard   *store.Guard
	engines EngineFactory
	jrnl    *journal.Journal
	idle    time.Duration

	// supervisor-side state; never touched by workers
	mu          sync.Mutex
	workerCount int
	cursor      int
	running     int
	workers     map[int]workerRecord
	started     bool

	exits      chan exitEvent
	parentDone chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New constructs a Dispatcher. Failing to obtain the shared store is fatal:
// nothing starts.
func New(opts Options) (*Dispatcher, error) {
	if opts.Engines == nil {
		return nil, errors.New("dispatch: Options.Engines is required")
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = DefaultWorkerCount
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}

	st, err := store.Open(opts.QueueCapacity)
	if err != nil {
		return nil, fmt.Errorf("dispatch: open shared store: %w", err)
	}

	return &Dispatcher{
		logger:      logger.With(logpkg.Component("dispatch")),
		st:          st,
		guard:       store.NewGuard(),
		engines:     opts.Engines,
		jrnl:        opts.Journal,
		idle:        opts.IdleInterval,
		workerCount: opts.WorkerCount,
		workers:     make(map[int]workerRecord, opts.WorkerCount),
		exits:       make(chan exitEvent, opts.WorkerCount),
		parentDone:  make(chan struct{}),
	}, nil
}

// WorkerCount returns the configured pool size.
func (d *Dispatcher) WorkerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workerCount
}

// Start spawns the worker pool. Cancelling ctx asks every worker to exit;
// a worker honors it within one idle interval.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("dispatch: already started")
	}
	d.started = true
	count := d.workerCount
	d.mu.Unlock()

	for i := 0; i < count; i++ {
		engine, err := d.engines(i)
		if err != nil {
			d.logger.Warn("could not spawn worker",
				logpkg.Int("index", i), logpkg.Err(err))
			continue
		}
		rec := workerRecord{index: i, id: uuid.NewString()}
		d.mu.Lock()
		d.workers[i] = rec
		d.running++
		d.mu.Unlock()

		d.wg.Add(1)
		go d.runWorker(ctx, rec, engine)
		d.logger.Info("worker spawned",
			logpkg.Int("index", i), logpkg.Str("id", rec.id))
	}
	return nil
}

// IsRunning reaps any pending worker exits, then reports whether any
// worker is still alive.
func (d *Dispatcher) IsRunning() bool {
	d.reap()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running > 0
}

// reap drains exit notifications without blocking. Handles bursts of
// simultaneous exits; the running count never goes negative.
func (d *Dispatcher) reap() {
	for {
		select {
		case ev := <-d.exits:
			d.mu.Lock()
			if d.running > 0 {
				d.running--
			}
			rec := d.workers[ev.index]
			delete(d.workers, ev.index)
			d.mu.Unlock()
			if ev.err != nil {
				d.logger.Warn("worker exited with error",
					logpkg.Int("index", ev.index),
					logpkg.Str("id", rec.id),
					logpkg.Err(ev.err))
			} else {
				d.logger.Info("worker exited",
					logpkg.Int("index", ev.index),
					logpkg.Str("id", rec.id))
			}
		default:
			return
		}
	}
}

// Wait blocks until every worker has exited, then reaps them.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
	d.reap()
}

// MessageQueue concatenates all worker slots in ascending index order. When
// empty is true the slots are cleared in the same critical section.
func (d *Dispatcher) MessageQueue(empty bool) ([]*push.Message, error) {
	d.mu.Lock()
	count := d.workerCount
	d.mu.Unlock()

	var recs [][]byte
	d.guard.Acquire()
	for i := 0; i < count; i++ {
		key := store.WorkerSlotKey(i)
		recs = append(recs, d.st.Read(key)...)
		if empty {
			if err := d.st.Write(key, nil); err != nil {
				d.guard.Release()
				return nil, err
			}
		}
	}
	d.guard.Release()

	msgs := make([]*push.Message, 0, len(recs))
	for _, r := range recs {
		m, err := push.DecodeMessage(r)
		if err != nil {
			d.logger.Error("undecodable record in worker slot", logpkg.Err(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Errors reads the shared error slot. When empty is true the slot is
// cleared in the same critical section.
func (d *Dispatcher) Errors(empty bool) ([]push.DeliveryError, error) {
	d.guard.Acquire()
	recs := d.st.Read(store.ErrorSlotKey)
	if empty {
		if err := d.st.Write(store.ErrorSlotKey, nil); err != nil {
			d.guard.Release()
			return nil, err
		}
	}
	d.guard.Release()

	errs := make([]push.DeliveryError, 0, len(recs))
	for _, r := range recs {
		e, err := push.DecodeDeliveryError(r)
		if err != nil {
			d.logger.Error("undecodable record in error slot", logpkg.Err(err))
			continue
		}
		errs = append(errs, e)
	}
	return errs, nil
}

// Close tears the pool down: workers are asked to exit, waited for, and
// the shared store is destroyed. Cleanup runs exactly once no matter how
// often Close is called or how the owning process is terminating.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		close(d.parentDone)
		d.wg.Wait()
		d.reap()
		_ = d.st.Close()
		d.logger.Info("shared store destroyed")
	})
	return nil
}
