package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// ObjectClient reads and writes whole objects in a remote bucket or container.
// GetObject must return an error matching fs.ErrNotExist when the object is
// absent.
type ObjectClient interface {
	GetObject(ctx context.Context, name string) ([]byte, error)
	PutObject(ctx context.Context, name string, data []byte) error
	Location(name string) string
}

// ObjectStore keeps the record as a single object in remote storage. Object
// writes replace the whole object, so a save is never observed half written.
type ObjectStore struct {
	client ObjectClient
	name   string
}

// NewObjectStore creates a store for the named object.
func NewObjectStore(client ObjectClient, name string) *ObjectStore {
	return &ObjectStore{client: client, name: name}
}

// Location implements Store.
func (s *ObjectStore) Location() string {
	return s.client.Location(s.name)
}

// Load implements Store.
func (s *ObjectStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.client.GetObject(ctx, s.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewRecord(), nil
		}
		return nil, fmt.Errorf("failed to read progress object %s: %w", s.Location(), err)
	}
	r, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("progress object %s: %w", s.Location(), err)
	}
	return r, nil
}

// Save implements Store.
func (s *ObjectStore) Save(ctx context.Context, r *Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := s.client.PutObject(ctx, s.name, data); err != nil {
		return fmt.Errorf("failed to write progress object %s: %w", s.Location(), err)
	}
	return nil
}
