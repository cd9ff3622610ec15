package memory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTopicKey(t *testing.T) {
	cases := []struct {
		topic string
		want  string
	}{
		{"Bugs", "bugs"},
		{"Auth Bug", "auth-bug"},
		{"v2.0 Rollout!", "v2-0-rollout-"},
		{"already-safe-123", "already-safe-123"},
	}
	for _, tc := range cases {
		if got := TopicKey(tc.topic); got != tc.want {
			t.Fatalf("TopicKey(%q) = %q, want %q", tc.topic, got, tc.want)
		}
	}
}

func TestStoreCreatesTopicAndReplacesPlaceholder(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore error = %v", err)
	}

	index, err := os.ReadFile(filepath.Join(root, "index.md"))
	if err != nil {
		t.Fatalf("read fresh index: %v", err)
	}
	if !strings.Contains(string(index), IndexPlaceholder) {
		t.Fatalf("fresh index missing placeholder: %q", index)
	}

	if err := store.Append("Bugs", "why does login fail?", "Token refresh races."); err != nil {
		t.Fatalf("Append error = %v", err)
	}

	topic, err := os.ReadFile(filepath.Join(root, "docs", "bugs.md"))
	if err != nil {
		t.Fatalf("read topic file: %v", err)
	}
	got := string(topic)
	if !strings.HasPrefix(got, "# Bugs\n") {
		t.Fatalf("topic file missing heading: %q", got)
	}
	if !strings.Contains(got, "## Query: why does login fail?") {
		t.Fatalf("topic file missing query block: %q", got)
	}
	if !strings.Contains(got, "Token refresh races.") {
		t.Fatalf("topic file missing response: %q", got)
	}

	index, _ = os.ReadFile(filepath.Join(root, "index.md"))
	if strings.Contains(string(index), IndexPlaceholder) {
		t.Fatalf("placeholder not replaced: %q", index)
	}
	if !strings.Contains(string(index), "- [Bugs](docs/bugs.md)") {
		t.Fatalf("index missing topic link: %q", index)
	}
}

func TestStoreSecondAppendDoesNotTouchIndex(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore error = %v", err)
	}

	if err := store.Append("Bugs", "first", "one"); err != nil {
		t.Fatalf("first Append error = %v", err)
	}
	before, _ := os.ReadFile(filepath.Join(root, "index.md"))

	if err := store.Append("Bugs", "second", "two"); err != nil {
		t.Fatalf("second Append error = %v", err)
	}
	after, _ := os.ReadFile(filepath.Join(root, "index.md"))
	if string(before) != string(after) {
		t.Fatalf("index changed on repeat append:\nbefore: %q\nafter: %q", before, after)
	}

	topic, _ := os.ReadFile(filepath.Join(root, "docs", "bugs.md"))
	if n := strings.Count(string(topic), "## Query:"); n != 2 {
		t.Fatalf("query blocks = %d, want 2", n)
	}
	if strings.Index(string(topic), "first") > strings.Index(string(topic), "second") {
		t.Fatalf("second block not appended below the first: %q", topic)
	}
}

func TestStoreIndexKeepsPriorEntries(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore error = %v", err)
	}

	if err := store.Append("Bugs", "q1", "r1"); err != nil {
		t.Fatalf("Append error = %v", err)
	}
	if err := store.Append("Performance", "q2", "r2"); err != nil {
		t.Fatalf("Append error = %v", err)
	}

	index, _ := os.ReadFile(filepath.Join(root, "index.md"))
	for _, entry := range []string{"- [Bugs](docs/bugs.md)", "- [Performance](docs/performance.md)"} {
		if !strings.Contains(string(index), entry) {
			t.Fatalf("index missing %q: %q", entry, index)
		}
	}
}

func TestStoreReusesExistingIndex(t *testing.T) {
	root := t.TempDir()
	if _, err := NewStore(root); err != nil {
		t.Fatalf("NewStore error = %v", err)
	}
	// Reopening must not clobber a populated index.
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("second NewStore error = %v", err)
	}
	if err := store.Append("Bugs", "q", "r"); err != nil {
		t.Fatalf("Append error = %v", err)
	}
	store2, err := NewStore(root)
	if err != nil {
		t.Fatalf("third NewStore error = %v", err)
	}
	_ = store2
	index, _ := os.ReadFile(filepath.Join(root, "index.md"))
	if !strings.Contains(string(index), "- [Bugs](docs/bugs.md)") {
		t.Fatalf("reopen lost index entries: %q", index)
	}
}
