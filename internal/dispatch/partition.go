package dispatch

import (
	"fmt"

	"github.com/m2mobi/apnsd/internal/push"
	"github.com/m2mobi/apnsd/internal/store"
)

// Submit assigns the message to the worker slot at the partition cursor
// and advances the cursor. Round-robin guarantees slot sizes differ by at
// most one for any submission sequence: item j (0-indexed) lands in slot
// j mod workerCount.
//
// Only the supervisor side calls Submit; the cursor has no meaning inside
// workers. Delivery is asynchronous: a successful Submit says nothing
// about the delivery outcome, which is reported through Errors.
func (d *Dispatcher) Submit(m *push.Message) error {
	enc, err := m.Encode()
	if err != nil {
		return fmt.Errorf("dispatch: encode message: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := store.WorkerSlotKey(d.cursor)
	d.guard.Acquire()
	recs := d.st.Read(key)
	recs = append(recs, enc)
	err = d.st.Write(key, recs)
	d.guard.Release()
	if err != nil {
		return fmt.Errorf("dispatch: queue slot %d: %w", d.cursor, err)
	}

	d.cursor = (d.cursor + 1) % d.workerCount
	return nil
}
