package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/metrics"
)

// FileStore keeps the ledger as a JSON document on local disk.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries []Entry
	loaded  bool
}

var _ Store = (*FileStore)(nil)

type document struct {
	Items []Entry `json:"items"`
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// EnsureSchema creates an empty ledger file when none exists and loads the entries.
func (s *FileStore) EnsureSchema(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.load()
	metrics.ObserveLedger(DriverFile, "ensure_schema", start, err)
	return err
}

func (s *FileStore) WasDelivered(_ context.Context, l *listing.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.load(); err != nil {
		metrics.ObserveLedger(DriverFile, "was_delivered", start, err)
		return false, err
	}

	found := s.find(l) >= 0
	metrics.ObserveLedger(DriverFile, "was_delivered", start, nil)
	return found, nil
}

// RecordAll appends the entries not yet covered in a single rewrite of the file.
// A failed write leaves both the file and the in-memory ledger untouched.
func (s *FileStore) RecordAll(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.recordAll(entries)
	metrics.ObserveLedger(DriverFile, "record_all", start, err)
	return err
}

// Entries returns a copy of every recorded entry.
func (s *FileStore) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	return append([]Entry(nil), s.entries...), nil
}

func (s *FileStore) recordAll(entries []Entry) error {
	if err := s.load(); err != nil {
		return err
	}

	next := append([]Entry(nil), s.entries...)
	added := 0
	for _, e := range entries {
		if covered(next, e) {
			continue
		}
		next = append(next, e)
		added++
	}
	if added == 0 {
		return nil
	}

	if err := s.write(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func covered(entries []Entry, e Entry) bool {
	for _, existing := range entries {
		if existing.Covers(e) {
			return true
		}
	}
	return false
}

func (s *FileStore) find(l *listing.Listing) int {
	for i, e := range s.entries {
		if e.Matches(l) {
			return i
		}
	}
	return -1
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return err
		}
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ledger %q: %w", s.path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger %q: %w", s.path, err)
	}

	if stat.Size() > 0 {
		var doc document
		if err := json.NewDecoder(file).Decode(&doc); err != nil {
			return fmt.Errorf("decode ledger %q: %w", s.path, err)
		}
		s.entries = doc.Items
	}

	s.loaded = true
	return nil
}

// write replaces the ledger file atomically.
func (s *FileStore) write(entries []Entry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if entries == nil {
		entries = []Entry{}
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{Items: entries}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger %q: %w", s.path, err)
	}
	return nil
}
