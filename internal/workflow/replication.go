package workflow

import (
	"context"

	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/progress"
)

// StorageReplicationHandler is a placeholder for cross-region Object Storage
// replication.
type StorageReplicationHandler struct {
	logger *logger.Logger
}

func NewStorageReplicationHandler() *StorageReplicationHandler { return &StorageReplicationHandler{} }
func (h *StorageReplicationHandler) Name() string              { return "storage-replication" }
func (h *StorageReplicationHandler) Description() string {
	return "Replicate Object Storage buckets to another region (not yet implemented)"
}

func (h *StorageReplicationHandler) Initialize(_ *config.Config, log *logger.Logger, _ bool) error {
	h.logger = log
	return nil
}

func (h *StorageReplicationHandler) Execute(_ context.Context, _ *progress.Journal) error {
	h.logger.Warning("Storage replication workflow is not yet implemented")
	return nil
}

// VolumeReplicationHandler is a placeholder for cross-region block volume
// replication.
type VolumeReplicationHandler struct {
	logger *logger.Logger
}

func NewVolumeReplicationHandler() *VolumeReplicationHandler { return &VolumeReplicationHandler{} }
func (h *VolumeReplicationHandler) Name() string             { return "volume-replication" }
func (h *VolumeReplicationHandler) Description() string {
	return "Replicate block volumes to another region (not yet implemented)"
}

func (h *VolumeReplicationHandler) Initialize(_ *config.Config, log *logger.Logger, _ bool) error {
	h.logger = log
	return nil
}

func (h *VolumeReplicationHandler) Execute(_ context.Context, _ *progress.Journal) error {
	h.logger.Warning("Volume replication workflow is not yet implemented")
	return nil
}
