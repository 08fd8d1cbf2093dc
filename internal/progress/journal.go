package progress

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/codebypatrickleung/ocimigrate/internal/logger"
)

// Journal couples the in-memory record with the store it came from. The
// workflow mutates Record() freely; nothing is durable until Checkpoint.
type Journal struct {
	store  Store
	record *Record
	log    *logger.Logger
}

// OpenJournal loads the record from store. A fresh record is assigned a new
// migration id.
func OpenJournal(ctx context.Context, store Store, log *logger.Logger) (*Journal, error) {
	r, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if r.MigrationID == "" {
		r.MigrationID = uuid.NewString()
		log.Debugf("Assigned migration id %s", r.MigrationID)
	}
	if r.Empty() {
		log.Infof("No previous progress found at %s, starting a new migration", store.Location())
	} else {
		log.Infof("Resuming migration %s from %s (committed: %v)", r.MigrationID, store.Location(), r.Keys())
	}
	return &Journal{store: store, record: r, log: log}, nil
}

// Record returns the live record.
func (j *Journal) Record() *Record {
	return j.record
}

// Store returns the backing store.
func (j *Journal) Store() Store {
	return j.store
}

// Checkpoint persists the whole record.
func (j *Journal) Checkpoint(ctx context.Context) error {
	// Saving must succeed even after the run context was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := j.store.Save(ctx, j.record); err != nil {
		return fmt.Errorf("failed to checkpoint progress: %w", err)
	}
	j.log.Debugf("Checkpointed progress to %s: %v", j.store.Location(), j.record.Keys())
	return nil
}
