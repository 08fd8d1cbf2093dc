package workflow

import (
	"fmt"

	"github.com/codebypatrickleung/ocimigrate/internal/cloud/azure"
	"github.com/codebypatrickleung/ocimigrate/internal/cloud/oci"
	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/progress"
	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

// RetryPolicy returns the remote call policy described by cfg.
func RetryPolicy(cfg *config.Config) remote.Policy {
	return remote.Policy{
		MinDelay:    cfg.RetryMinDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Multiplier:  cfg.RetryMultiplier,
		MaxAttempts: cfg.RetryMaxAttempts,
	}
}

// ClientOptions returns the OCI client options described by cfg.
func ClientOptions(cfg *config.Config, dryRun bool) oci.Options {
	return oci.Options{
		ConfigFile:           cfg.OCIConfigFile,
		Profile:              cfg.OCIProfile,
		Policy:               RetryPolicy(cfg),
		DryRun:               dryRun,
		PollInterval:         cfg.PollInterval,
		InstancePollInterval: cfg.InstancePollInterval,
	}
}

// NewStore returns the progress store selected by cfg.ProgressBackend.
// Object Storage progress lives in the source region.
func NewStore(cfg *config.Config, log *logger.Logger) (progress.Store, error) {
	switch cfg.ProgressBackend {
	case "", config.BackendFile:
		return progress.NewFileStore(cfg.StateFilePath), nil
	case config.BackendObjectStorage:
		client := oci.NewClient(cfg.SourceRegion, ClientOptions(cfg, false), log)
		return progress.NewObjectStore(client.Bucket(cfg.ProgressBucket), cfg.ProgressObject), nil
	case config.BackendAzureBlob:
		client, err := azure.NewBlobClient(cfg.AzureStorageAccountURL, cfg.AzureContainer, RetryPolicy(cfg), log)
		if err != nil {
			return nil, err
		}
		return progress.NewObjectStore(client, cfg.ProgressObject), nil
	}
	return nil, fmt.Errorf("unknown progress backend %q", cfg.ProgressBackend)
}
