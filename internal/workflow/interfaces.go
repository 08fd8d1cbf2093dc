// Package workflow defines interfaces for workflow abstraction.
package workflow

import (
	"context"

	"github.com/codebypatrickleung/ocimigrate/internal/cloud/oci"
	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/progress"
	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

// Handler defines the interface for a workflow handler that orchestrates migration.
type Handler interface {
	// Name returns the workflow selector (e.g., "compute").
	Name() string

	// Description returns a one-line summary for help output.
	Description() string

	// Initialize prepares the workflow handler with configuration and logger.
	Initialize(cfg *config.Config, log *logger.Logger, dryRun bool) error

	// Execute runs the workflow, resuming from the progress in journal.
	Execute(ctx context.Context, journal *progress.Journal) error
}

// RegionClient is the set of regional OCI operations the compute workflow
// needs. *oci.Client implements it.
type RegionClient interface {
	Region() string
	Namespace(ctx context.Context) (string, error)
	ObjectURI(namespace, bucketName, objectName string) string

	CheckCompartment(ctx context.Context, compartmentID string) error
	CheckSubnet(ctx context.Context, subnetID string) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)

	CreateImage(ctx context.Context, compartmentID, instanceID, displayName string) (*remote.Result, error)
	WaitForImageAvailable(ctx context.Context, imageID string) (*remote.Result, error)
	ExportImage(ctx context.Context, imageID, namespace, bucketName, objectName string) (*remote.Result, error)
	WaitForWorkRequest(ctx context.Context, workRequestID string) (*remote.Result, error)
	ImportImage(ctx context.Context, d oci.ImportImageDetails) (*remote.Result, error)
	LaunchInstance(ctx context.Context, d oci.LaunchInstanceDetails) (*remote.Result, error)
	WaitForInstanceRunning(ctx context.Context, instanceID string) (*remote.Result, error)
}

// ClientFactory creates a RegionClient bound to region.
type ClientFactory func(region string) RegionClient

var _ RegionClient = (*oci.Client)(nil)
