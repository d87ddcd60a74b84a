package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/m2mobi/apnsd/internal/push"
)

const failurePrefix = "fail/"

// Journal is an append-only, Pebble-backed record of delivery failures,
// kept for post-mortem inspection across restarts. Queued messages are
// never journaled; only their failure records are.
type Journal struct {
	db *pebble.DB

	mu  sync.Mutex
	seq uint64

	now func() time.Time
}

// Open creates or opens the journal at dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal: dir is required")
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// failureKey orders records by timestamp, then by an in-process sequence
// to keep same-millisecond records distinct.
// Format: fail/{ts_ms_be8}{seq_be8}
func failureKey(tsMs int64, seq uint64) []byte {
	key := make([]byte, len(failurePrefix)+16)
	copy(key, failurePrefix)
	binary.BigEndian.PutUint64(key[len(failurePrefix):], uint64(tsMs))
	binary.BigEndian.PutUint64(key[len(failurePrefix)+8:], seq)
	return key
}

// Append writes the failure records in one atomic batch. Safe for
// concurrent use by multiple workers.
func (j *Journal) Append(errs []push.DeliveryError) error {
	if len(errs) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	b := j.db.NewBatch()
	defer b.Close()

	tsMs := j.now().UnixMilli()
	for _, e := range errs {
		j.seq++
		val, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("journal: marshal record: %w", err)
		}
		if err := b.Set(failureKey(tsMs, j.seq), val, nil); err != nil {
			return fmt.Errorf("journal: stage record: %w", err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("journal: commit: %w", err)
	}
	return nil
}

// Scan returns up to limit failure records in append order (oldest first).
// limit <= 0 means no limit.
func (j *Journal) Scan(limit int) ([]push.DeliveryError, error) {
	lo := []byte(failurePrefix)
	hi := append(append([]byte{}, lo...), 0xFF)
	iter, err := j.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, fmt.Errorf("journal: iterator: %w", err)
	}
	defer iter.Close()

	var out []push.DeliveryError
	for ok := iter.First(); ok; ok = iter.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var e push.DeliveryError
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}
