// Package memory persists query/response pairs as topic-named markdown files
// with a single index document. Writes are best-effort: the orchestrator logs
// failures and moves on.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	docsDirName   = "docs"
	indexFileName = "index.md"
	// IndexPlaceholder is the line a fresh index carries until the first
	// topic replaces it.
	IndexPlaceholder = "- No memories stored yet"
)

// Store owns one memory directory. A single mutex serializes all writes; the
// index document uses read-then-write semantics and write rates are low.
type Store struct {
	mu   sync.Mutex
	root string
}

// NewStore prepares the memory directory and its index document.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, docsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create memory directory: %w", err)
	}
	s := &Store{root: root}
	if err := s.ensureIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append records one query/response exchange under the given topic, creating
// the topic file and its index entry on first use.
func (s *Store) Append(topic, query, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := TopicKey(topic)
	path := filepath.Join(s.root, docsDirName, key+".md")
	block := fmt.Sprintf("## Query: %s\n\n%s\n\n---\n", query, response)

	if _, err := os.Stat(path); err == nil {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open topic file: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(block); err != nil {
			return fmt.Errorf("append to topic file: %w", err)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat topic file: %w", err)
	}

	content := fmt.Sprintf("# %s\n\n%s", topic, block)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create topic file: %w", err)
	}
	return s.indexTopic(topic, key)
}

// TopicKey derives the filesystem-safe key for a topic name.
func TopicKey(topic string) string {
	lower := strings.ToLower(topic)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, indexFileName)
}

func (s *Store) ensureIndex() error {
	path := s.indexPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat index: %w", err)
	}
	content := "# Memory Index\n\n" + IndexPlaceholder + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// indexTopic links a newly created topic from the index, replacing the
// placeholder on first use and appending afterwards. Existing entries are
// never dropped.
func (s *Store) indexTopic(topic, key string) error {
	path := s.indexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}

	entry := fmt.Sprintf("- [%s](%s/%s.md)", topic, docsDirName, key)
	content := string(data)
	if strings.Contains(content, IndexPlaceholder) {
		content = strings.Replace(content, IndexPlaceholder, entry, 1)
	} else {
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += entry + "\n"
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
