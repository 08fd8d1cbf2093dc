package progress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Store loads and saves whole progress records.
type Store interface {
	// Load returns the persisted record, or an empty record if none exists yet.
	// A snapshot that exists but cannot be decoded yields an ErrCorrupt error.
	Load(ctx context.Context) (*Record, error)

	// Save overwrites the persisted record with the given one.
	Save(ctx context.Context, r *Record) error

	// Location describes where the record lives, for log messages.
	Location() string
}

// ErrLocked is returned when another process holds the progress lock.
var ErrLocked = errors.New("progress record is locked by another process")

// FileStore keeps the record in a local JSON file. Saves are atomic: the
// file is either the previous snapshot or the new one, never a mix.
type FileStore struct {
	path       string
	backupPath string
	lock       *flock.Flock
}

// NewFileStore creates a file-backed store for the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:       path,
		backupPath: path + ".bak",
		lock:       flock.New(path + ".lock"),
	}
}

// Location implements Store.
func (s *FileStore) Location() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecord(), nil
		}
		return nil, fmt.Errorf("failed to read progress file %s: %w", s.path, err)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("progress file %s: %w", s.path, err)
	}
	return r, nil
}

// Save implements Store. The previous snapshot, if any, is kept next to the
// file with a .bak suffix.
func (s *FileStore) Save(_ context.Context, r *Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}
	if previous, err := os.ReadFile(s.path); err == nil {
		if err := atomicWriteFile(s.backupPath, previous, 0o644); err != nil {
			return fmt.Errorf("failed to back up progress file: %w", err)
		}
	}
	if err := atomicWriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress file %s: %w", s.path, err)
	}
	return nil
}

// Lock takes an exclusive advisory lock on the progress file so that two
// runs never mutate the same record. It does not block.
func (s *FileStore) Lock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w (lock file: %s)", ErrLocked, s.lock.Path())
	}
	return nil
}

// Unlock releases the lock taken by Lock.
func (s *FileStore) Unlock() error {
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", s.lock.Path(), err)
	}
	return nil
}

// MemoryStore keeps the record in memory only. It backs dry runs, where the
// intended progression is tracked but never written to durable storage.
type MemoryStore struct {
	current   *Record
	snapshots []*Record
}

// NewMemoryStore creates an in-memory store seeded with a copy of initial,
// which may be nil.
func NewMemoryStore(initial *Record) *MemoryStore {
	s := &MemoryStore{}
	if initial != nil {
		s.current = initial.Clone()
	}
	return s
}

// Location implements Store.
func (s *MemoryStore) Location() string {
	return "memory"
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context) (*Record, error) {
	if s.current == nil {
		return NewRecord(), nil
	}
	return s.current.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.current = r.Clone()
	s.snapshots = append(s.snapshots, r.Clone())
	return nil
}

// Snapshots returns every saved version, oldest first.
func (s *MemoryStore) Snapshots() []*Record {
	return s.snapshots
}
