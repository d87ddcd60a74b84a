package serverrun

import (
	"os"
	"path/filepath"
	"testing"
)

const testToken = "1e82db91c7ceddd72bf33d74ae052ac9c84a065b35148ac401388843106a7485"

func TestLoadMessages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	body := `[
		{"tokens": ["` + testToken + `"], "title": "Hi", "body": "There", "customIdentifier": "m1"},
		{"tokens": ["` + testToken + `"], "body": "Second"}
	]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	msgs, err := LoadMessages(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].CustomIdentifier != "m1" || msgs[0].Title != "Hi" {
		t.Fatalf("first message: %+v", msgs[0])
	}
}

func TestLoadMessagesRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(path, []byte(`[{"tokens": ["tooshort"], "body": "x"}]`), 0o644)
	if _, err := LoadMessages(path); err == nil {
		t.Fatalf("invalid token accepted")
	}
}

func TestLoadMessagesRequiresPath(t *testing.T) {
	if _, err := LoadMessages(""); err == nil {
		t.Fatalf("empty path accepted")
	}
	if _, err := LoadMessages(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("missing file accepted")
	}
}
