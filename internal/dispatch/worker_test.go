package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestWorkerDrainsOwnSlotInOrder(t *testing.T) {
	d, engines := newTestDispatcher(t, 1)
	for j := 0; j < 3; j++ {
		_ = d.Submit(testMessage(fmt.Sprintf("m%d", j)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = d.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	var got []string
	for {
		got = got[:0]
		for _, batch := range engines[0].allBatches() {
			for _, m := range batch {
				got = append(got, m.CustomIdentifier)
			}
		}
		if len(got) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d messages, want 3", len(got))
		}
		time.Sleep(5 * time.Millisecond)
	}
	for i, w := range []string{"m0", "m1", "m2"} {
		if got[i] != w {
			t.Fatalf("delivery order %v, want FIFO", got)
		}
	}

	// slot is empty once drained
	left, _ := d.MessageQueue(false)
	if len(left) != 0 {
		t.Fatalf("slot not drained: %d left", len(left))
	}

	cancel()
	d.Wait()
}

func TestIdleWorkerPerformsNoSend(t *testing.T) {
	d, engines := newTestDispatcher(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = d.Start(ctx)

	// several idle intervals pass with an empty slot
	time.Sleep(60 * time.Millisecond)
	if n := engines[0].sendCount(); n != 0 {
		t.Fatalf("idle worker called send %d times", n)
	}

	cancel()
	d.Wait()
}

func TestWorkerExitsWithinIdleIntervalOfSupervisorDeath(t *testing.T) {
	d, _ := newTestDispatcher(t, 2)
	_ = d.Start(context.Background())

	start := time.Now()
	close(d.parentDone)
	// the cleanup Close must not close the channel a second time
	d.closeOnce.Do(func() {})
	d.wg.Wait()
	elapsed := time.Since(start)

	// bounded by one idle interval plus scheduling slack
	if elapsed > d.idle+200*time.Millisecond {
		t.Fatalf("workers took %v to notice supervisor death", elapsed)
	}
	d.reap()
	if d.IsRunning() {
		t.Fatalf("workers still running after supervisor death")
	}

	_ = d.st.Close()
}

func TestWorkerHonorsCancellationWithinOneIteration(t *testing.T) {
	d, _ := newTestDispatcher(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	_ = d.Start(ctx)

	start := time.Now()
	cancel()
	d.wg.Wait()
	if elapsed := time.Since(start); elapsed > d.idle+200*time.Millisecond {
		t.Fatalf("cancellation honored after %v", elapsed)
	}
	d.reap()
}

func TestWorkerDisconnectsAfterLoopExit(t *testing.T) {
	engine := &fakeEngine{}
	d, _ := newTestDispatcher(t, 1, engine)
	ctx, cancel := context.WithCancel(context.Background())
	_ = d.Start(ctx)

	cancel()
	d.Wait()

	engine.mu.Lock()
	connected := engine.connected
	engine.mu.Unlock()
	if connected {
		t.Fatalf("engine still connected after worker exit")
	}
}

func TestWorkItemsLeaveQueueWhenDrained(t *testing.T) {
	// a drained item's fate is tracked by the engine alone: after the
	// worker picks it up it is gone from the store even if delivery
	// later fails
	engine := &fakeEngine{}
	d, _ := newTestDispatcher(t, 1, engine)
	_ = d.Submit(testMessage("gone"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = d.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		left, _ := d.MessageQueue(false)
		if len(left) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("item still queued")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	d.Wait()
}
