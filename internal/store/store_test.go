package store

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestReadUnsetSlotIsEmpty(t *testing.T) {
	s, err := Open(1024)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.Read(WorkerSlotKey(0)); len(got) != 0 {
		t.Fatalf("want empty, got %d records", len(got))
	}
}

func TestWriteReadRoundtripPreservesOrder(t *testing.T) {
	s, _ := Open(1024)
	recs := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	if err := s.Write(WorkerSlotKey(1), recs); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := s.Read(WorkerSlotKey(1))
	if len(got) != 3 {
		t.Fatalf("want 3 records, got %d", len(got))
	}
	for i := range recs {
		if !bytes.Equal(got[i], recs[i]) {
			t.Fatalf("record %d mismatch", i)
		}
	}
}

func TestEmptyWriteClearsSlot(t *testing.T) {
	s, _ := Open(1024)
	_ = s.Write(ErrorSlotKey, [][]byte{[]byte("err")})
	if err := s.Write(ErrorSlotKey, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := s.Read(ErrorSlotKey); len(got) != 0 {
		t.Fatalf("slot not cleared")
	}
	if s.Used() != 0 {
		t.Fatalf("used = %d after clear", s.Used())
	}
}

func TestCapacityOverflowIsHardFailure(t *testing.T) {
	s, _ := Open(8)
	if err := s.Write(WorkerSlotKey(0), [][]byte{[]byte("12345678")}); err != nil {
		t.Fatalf("write at capacity: %v", err)
	}
	err := s.Write(WorkerSlotKey(1), [][]byte{[]byte("x")})
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("want ErrCapacity, got %v", err)
	}
	// replacing a slot with smaller content frees budget
	if err := s.Write(WorkerSlotKey(0), [][]byte{[]byte("1234")}); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if err := s.Write(WorkerSlotKey(1), [][]byte{[]byte("abcd")}); err != nil {
		t.Fatalf("write after shrink: %v", err)
	}
}

func TestSlotKeysNeverCollide(t *testing.T) {
	seen := map[int]bool{ErrorSlotKey: true}
	for i := 0; i < 64; i++ {
		k := WorkerSlotKey(i)
		if seen[k] {
			t.Fatalf("key collision at worker %d", i)
		}
		seen[k] = true
	}
}

func TestGuardSerializesReadModifyWrite(t *testing.T) {
	s, _ := Open(1 << 20)
	g := NewGuard()
	key := WorkerSlotKey(0)

	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				g.Acquire()
				recs := s.Read(key)
				recs = append(recs, []byte("r"))
				if err := s.Write(key, recs); err != nil {
					t.Errorf("write: %v", err)
				}
				g.Release()
			}
		}()
	}
	wg.Wait()

	g.Acquire()
	got := len(s.Read(key))
	g.Release()
	if got != writers*perWriter {
		t.Fatalf("lost updates: want %d records, got %d", writers*perWriter, got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _ := Open(64)
	_ = s.Write(ErrorSlotKey, [][]byte{[]byte("e")})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.Write(ErrorSlotKey, [][]byte{[]byte("e")}); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestOpenRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := Open(0); err == nil {
		t.Fatalf("want error for zero capacity")
	}
	if _, err := Open(-1); err == nil {
		t.Fatalf("want error for negative capacity")
	}
}
