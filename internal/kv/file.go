package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// journalFile never collides with a key file, which always ends in .json.
const journalFile = "pending.journal"

// renameFile is swapped in tests to simulate a failing disk.
var renameFile = os.Rename

type journalEntry struct {
	Key     string `json:"key"`
	Value   []byte `json:"value,omitempty"`
	Missing bool   `json:"missing,omitempty"`
}

type journal struct {
	Next []journalEntry `json:"next"`
	Prev []journalEntry `json:"prev"`
}

// FileStore keeps one JSON file per key inside a data directory.
type FileStore struct {
	mu      sync.Mutex
	dataDir string
}

// NewFileStore creates a FileStore rooted at dataDir. The directory is created on first write.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{dataDir: dataDir}
}

// DataDir returns the store's data directory.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

func (s *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dataDir, key+".json"), nil
}

func (s *FileStore) journalPath() string {
	return filepath.Join(s.dataDir, journalFile)
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replayLocked(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMulti(ctx, []Entry{{Key: key, Value: value}})
}

// SetMulti records the batch and the values it replaces in a journal before
// touching any key file. A failed write rolls the keys back; a journal left
// behind by a crash is rolled forward by the next call.
func (s *FileStore) SetMulti(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replayLocked(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	j := journal{}
	for _, e := range entries {
		p, err := s.path(e.Key)
		if err != nil {
			return err
		}
		j.Next = append(j.Next, journalEntry{Key: e.Key, Value: e.Value})

		prev, err := os.ReadFile(p)
		switch {
		case errors.Is(err, os.ErrNotExist):
			j.Prev = append(j.Prev, journalEntry{Key: e.Key, Missing: true})
		case err != nil:
			return fmt.Errorf("reading %s: %w", e.Key, err)
		default:
			j.Prev = append(j.Prev, journalEntry{Key: e.Key, Value: prev})
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encoding journal: %w", err)
	}
	if err := writeAtomic(s.journalPath(), data); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}

	if err := s.applyLocked(j.Next); err != nil {
		if rbErr := s.applyLocked(j.Prev); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	return nil
}

// applyLocked writes the entries in order and drops the journal once all of
// them are in place.
func (s *FileStore) applyLocked(entries []journalEntry) error {
	for _, e := range entries {
		p, err := s.path(e.Key)
		if err != nil {
			return err
		}
		if e.Missing {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing %s: %w", e.Key, err)
			}
			continue
		}
		if err := writeAtomic(p, e.Value); err != nil {
			return fmt.Errorf("writing %s: %w", e.Key, err)
		}
	}
	if err := os.Remove(s.journalPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing journal: %w", err)
	}
	return nil
}

func (s *FileStore) replayLocked() error {
	data, err := os.ReadFile(s.journalPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}

	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("decoding journal: %w", err)
	}
	if err := s.applyLocked(j.Next); err != nil {
		return fmt.Errorf("replaying journal: %w", err)
	}
	return nil
}

// writeAtomic replaces path through a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := renameFile(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
