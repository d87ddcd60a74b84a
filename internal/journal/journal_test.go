package journal

import (
	"testing"
	"time"

	"github.com/m2mobi/apnsd/internal/push"
)

func openTestJournal(t *testing.T, dir string) *Journal {
	t.Helper()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	return j
}

func TestAppendScanOrder(t *testing.T) {
	j := openTestJournal(t, t.TempDir())
	defer j.Close()

	clock := time.UnixMilli(1000)
	j.now = func() time.Time { return clock }

	_ = j.Append([]push.DeliveryError{
		{Token: "aaa", Reason: "BadDeviceToken"},
		{Token: "bbb", Reason: "Unregistered"},
	})
	clock = time.UnixMilli(2000)
	_ = j.Append([]push.DeliveryError{{Token: "ccc", Reason: "Shutdown"}})

	got, err := j.Scan(0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 records, got %d", len(got))
	}
	wantTokens := []string{"aaa", "bbb", "ccc"}
	for i, w := range wantTokens {
		if got[i].Token != w {
			t.Fatalf("record %d token = %q, want %q", i, got[i].Token, w)
		}
	}
}

func TestScanLimit(t *testing.T) {
	j := openTestJournal(t, t.TempDir())
	defer j.Close()
	_ = j.Append([]push.DeliveryError{{Token: "a"}, {Token: "b"}, {Token: "c"}})
	got, _ := j.Scan(2)
	if len(got) != 2 {
		t.Fatalf("limit ignored: got %d", len(got))
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	j := openTestJournal(t, dir)
	_ = j.Append([]push.DeliveryError{{Token: "persist", Reason: "Unregistered"}})
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2 := openTestJournal(t, dir)
	defer j2.Close()
	got, err := j2.Scan(0)
	if err != nil {
		t.Fatalf("scan after reopen: %v", err)
	}
	if len(got) != 1 || got[0].Token != "persist" {
		t.Fatalf("records lost across reopen: %+v", got)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("empty dir accepted")
	}
}
