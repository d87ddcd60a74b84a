package dispatch

import (
	"context"
	"time"

	"github.com/m2mobi/apnsd/internal/push"
	"github.com/m2mobi/apnsd/internal/store"
	logpkg "github.com/m2mobi/apnsd/pkg/log"
)

// runWorker is the body of one worker. It connects the engine, runs the
// polling loop until a shutdown condition, then disconnects and reports
// its exit for the supervisor to reap.
func (d *Dispatcher) runWorker(ctx context.Context, rec workerRecord, engine Engine) {
	logger := d.logger.With(
		logpkg.Int("worker", rec.index),
		logpkg.Str("id", rec.id),
	)

	var exitErr error
	defer func() {
		d.exits <- exitEvent{index: rec.index, err: exitErr}
		d.wg.Done()
	}()

	if err := engine.Connect(ctx); err != nil {
		logger.Error("unable to connect to the delivery gateway", logpkg.Err(err))
		exitErr = err
		return
	}
	defer func() {
		if err := engine.Disconnect(); err != nil {
			logger.Warn("disconnect", logpkg.Err(err))
		}
	}()

	d.workerLoop(ctx, rec.index, engine, logger)
}

// workerLoop polls the worker's slot until asked to stop. Each iteration:
// pending signals first, then error merge and slot drain under one guard
// section, then delivery outside the guard. The guard is never held
// across network I/O or across a cancellation point.
func (d *Dispatcher) workerLoop(ctx context.Context, index int, engine Engine, logger logpkg.Logger) {
	slotKey := store.WorkerSlotKey(index)

	for {
		select {
		case <-ctx.Done():
			logger.Info("caught termination signal, exiting")
			return
		case <-d.parentDone:
			logger.Info("supervisor is gone, exiting")
			return
		default:
		}

		engErrs := engine.Errors()

		d.guard.Acquire()
		if len(engErrs) > 0 {
			d.mergeErrorsLocked(engErrs, logger)
		}
		batch := d.st.Read(slotKey)
		if len(batch) > 0 {
			if err := d.st.Write(slotKey, nil); err != nil {
				// clearing a slot cannot overflow; only a destroyed
				// store fails here, which means shutdown
				d.guard.Release()
				logger.Warn("queue store unavailable, exiting", logpkg.Err(err))
				return
			}
		}
		d.guard.Release()

		if d.jrnl != nil && len(engErrs) > 0 {
			if err := d.jrnl.Append(engErrs); err != nil {
				logger.Warn("journal append", logpkg.Err(err))
			}
		}

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
			case <-d.parentDone:
			case <-time.After(d.idle):
			}
			continue
		}

		for _, raw := range batch {
			m, err := push.DecodeMessage(raw)
			if err != nil {
				logger.Error("dropping undecodable work item", logpkg.Err(err))
				continue
			}
			engine.Add(m)
		}
		logger.Debug("sending batch", logpkg.Int("size", len(batch)))
		if err := engine.Send(ctx); err != nil {
			logger.Warn("send", logpkg.Err(err))
		}
	}
}

// mergeErrorsLocked folds the engine's drained error records into the
// shared error slot. Caller holds the guard.
func (d *Dispatcher) mergeErrorsLocked(engErrs []push.DeliveryError, logger logpkg.Logger) {
	recs := d.st.Read(store.ErrorSlotKey)
	for _, e := range engErrs {
		enc, err := push.EncodeDeliveryError(e)
		if err != nil {
			logger.Error("encode delivery error", logpkg.Err(err))
			continue
		}
		recs = append(recs, enc)
	}
	if err := d.st.Write(store.ErrorSlotKey, recs); err != nil {
		logger.Error("error slot write failed, records lost",
			logpkg.Int("count", len(engErrs)), logpkg.Err(err))
	}
}
