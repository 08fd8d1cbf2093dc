package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/codebypatrickleung/ocimigrate/internal/cloud/oci"
	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/progress"
)

// ComputeMigrationHandler moves a compute instance from one region to
// another: image the source instance, export the image to Object Storage,
// import it in the target region and launch a new instance from it.
//
// Every step is guarded by the progress record, so a rerun after a failure
// skips what already happened and resumes at the first incomplete step.
type ComputeMigrationHandler struct {
	config    *config.Config
	logger    *logger.Logger
	dryRun    bool
	newClient ClientFactory
	source    RegionClient
	target    RegionClient
}

func NewComputeMigrationHandler() *ComputeMigrationHandler { return &ComputeMigrationHandler{} }
func (h *ComputeMigrationHandler) Name() string            { return "compute" }
func (h *ComputeMigrationHandler) Description() string {
	return "Migrate a compute instance to another region via a custom image"
}

// Initialize validates the compute settings and creates one client per region.
func (h *ComputeMigrationHandler) Initialize(cfg *config.Config, log *logger.Logger, dryRun bool) error {
	if err := cfg.ValidateCompute(); err != nil {
		return err
	}
	h.config, h.logger, h.dryRun = cfg, log, dryRun
	newClient := h.newClient
	if newClient == nil {
		newClient = func(region string) RegionClient {
			return oci.NewClient(region, ClientOptions(cfg, dryRun), log)
		}
	}
	h.source = newClient(cfg.SourceRegion)
	h.target = newClient(cfg.TargetRegion)
	return nil
}

type computeStep struct {
	description string
	errMsg      string
	done        func(r *progress.Record) bool
	fn          func(ctx context.Context, j *progress.Journal) error
}

func (h *ComputeMigrationHandler) steps() []computeStep {
	return []computeStep{
		{
			"Create custom image from source instance", "image creation failed",
			func(r *progress.Record) bool { return r.Has(progress.KeySourceImageID) },
			h.createImage,
		},
		{
			"Wait for source image to become available", "source image did not become available",
			func(r *progress.Record) bool { return r.Has(progress.KeySourceImageAvailable) },
			h.waitForSourceImage,
		},
		{
			"Export image to Object Storage", "image export failed",
			func(r *progress.Record) bool { return r.Has(progress.KeyImageExportComplete) },
			h.exportImage,
		},
		{
			"Import image in target region", "image import failed",
			// A launched instance implies its image was available; records
			// written before target_image_available existed rely on this.
			func(r *progress.Record) bool {
				return r.Has(progress.KeyTargetImageAvailable) || r.Has(progress.KeyTargetInstanceID)
			},
			h.importImage,
		},
		{
			"Launch instance in target region", "instance launch failed",
			func(r *progress.Record) bool { return r.Has(progress.KeyTargetInstanceRunning) },
			h.launchInstance,
		},
	}
}

// Execute runs the steps that the record does not mark as done. The record
// is checkpointed after every step attempt, whether it succeeded or not.
func (h *ComputeMigrationHandler) Execute(ctx context.Context, journal *progress.Journal) error {
	h.logger.Info("=========================================")
	h.logger.Infof("Executing: compute migration %s -> %s", h.config.SourceRegion, h.config.TargetRegion)
	h.logger.Info("=========================================")

	record := journal.Record()
	steps := h.steps()
	pending := 0
	for _, step := range steps {
		if !step.done(record) {
			pending++
		}
	}
	if pending == 0 {
		h.logger.Success("All steps already completed, nothing to do")
		h.logSummary(record)
		return nil
	}

	if err := h.preflight(ctx); err != nil {
		return fmt.Errorf("preflight checks failed: %w", err)
	}

	for i, step := range steps {
		h.logger.Step(i+1, len(steps), step.description)
		if step.done(record) {
			h.logger.Info("Already completed, skipping")
			continue
		}
		err := step.fn(ctx, journal)
		if cpErr := journal.Checkpoint(ctx); cpErr != nil {
			if err != nil {
				return errors.Join(fmt.Errorf("%s: %w", step.errMsg, err), cpErr)
			}
			return cpErr
		}
		if err != nil {
			return fmt.Errorf("%s: %w", step.errMsg, err)
		}
	}

	h.logger.Success("=========================================")
	h.logger.Success("Compute migration completed successfully!")
	h.logger.Success("=========================================")
	h.logSummary(record)
	return nil
}

func (h *ComputeMigrationHandler) logSummary(r *progress.Record) {
	h.logger.Infof("Source image: %s", r.SourceImageID)
	h.logger.Infof("Target image: %s", r.TargetImageID)
	h.logger.Infof("Target instance: %s", r.TargetInstanceID)
}

// preflight checks that the compartments, subnet and staging bucket exist
// before anything is created.
func (h *ComputeMigrationHandler) preflight(ctx context.Context) error {
	if h.dryRun {
		h.logger.Info("[DRY_RUN] Skipping preflight checks")
		return nil
	}
	h.logger.Info("Running preflight checks...")
	if err := h.source.CheckCompartment(ctx, h.config.SourceCompartmentID); err != nil {
		return err
	}
	h.logger.Success("✓ Source compartment is accessible")
	if err := h.target.CheckCompartment(ctx, h.config.TargetCompartmentID); err != nil {
		return err
	}
	h.logger.Success("✓ Target compartment is accessible")
	if err := h.target.CheckSubnet(ctx, h.config.TargetSubnetID); err != nil {
		return err
	}
	h.logger.Success("✓ Target subnet is accessible")
	exists, err := h.source.BucketExists(ctx, h.config.MigrationBucketName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("staging bucket %s does not exist in %s", h.config.MigrationBucketName, h.source.Region())
	}
	h.logger.Successf("✓ Staging bucket %s exists", h.config.MigrationBucketName)
	return nil
}

func (h *ComputeMigrationHandler) createImage(ctx context.Context, j *progress.Journal) error {
	result, err := h.source.CreateImage(ctx, h.config.SourceCompartmentID, h.config.SourceInstanceID, h.config.NewImageName)
	if err != nil {
		return err
	}
	j.Record().SourceImageID = result.ID
	h.logger.Successf("Image creation started: %s", result.ID)
	return nil
}

func (h *ComputeMigrationHandler) waitForSourceImage(ctx context.Context, j *progress.Journal) error {
	r := j.Record()
	result, err := h.source.WaitForImageAvailable(ctx, r.SourceImageID)
	if err != nil {
		return err
	}
	r.SourceImageDetails = &progress.ImageDetails{
		OS:         result.Attribute(oci.AttrOperatingSystem),
		OSVersion:  result.Attribute(oci.AttrOperatingSystemVersion),
		LaunchMode: result.Attribute(oci.AttrLaunchMode),
	}
	r.SourceImageAvailable = true
	h.logger.Infof("Source image OS: %s %s (launch mode %s)",
		r.SourceImageDetails.OS, r.SourceImageDetails.OSVersion, r.SourceImageDetails.LaunchMode)
	return nil
}

func (h *ComputeMigrationHandler) exportImage(ctx context.Context, j *progress.Journal) error {
	r := j.Record()
	if r.Has(progress.KeyExportWorkRequestID) {
		h.logger.Infof("Export already started, resuming wait on work request %s", r.ExportWorkRequestID)
	} else {
		namespace, err := h.source.Namespace(ctx)
		if err != nil {
			return err
		}
		result, err := h.source.ExportImage(ctx, r.SourceImageID, namespace, h.config.MigrationBucketName, h.config.ImageObjectName())
		if err != nil {
			return err
		}
		r.ExportWorkRequestID = result.ID
		if err := j.Checkpoint(ctx); err != nil {
			return err
		}
		h.logger.Successf("Export started: %s/%s (work request %s)", h.config.MigrationBucketName, h.config.ImageObjectName(), result.ID)
	}
	if _, err := h.source.WaitForWorkRequest(ctx, r.ExportWorkRequestID); err != nil {
		return err
	}
	r.ImageExportComplete = true
	return nil
}

func (h *ComputeMigrationHandler) importImage(ctx context.Context, j *progress.Journal) error {
	r := j.Record()
	if r.Has(progress.KeyTargetImageID) {
		h.logger.Infof("Import already started, resuming wait on image %s", r.TargetImageID)
	} else {
		if r.SourceImageDetails == nil {
			return fmt.Errorf("progress record has no %s; remove %s to recapture it",
				progress.KeySourceImageDetails, progress.KeySourceImageAvailable)
		}
		namespace, err := h.source.Namespace(ctx)
		if err != nil {
			return err
		}
		sourceURI := h.source.ObjectURI(namespace, h.config.MigrationBucketName, h.config.ImageObjectName())
		result, err := h.target.ImportImage(ctx, oci.ImportImageDetails{
			CompartmentID:          h.config.TargetCompartmentID,
			DisplayName:            h.config.NewImageName,
			SourceURI:              sourceURI,
			OperatingSystem:        r.SourceImageDetails.OS,
			OperatingSystemVersion: r.SourceImageDetails.OSVersion,
			LaunchMode:             r.SourceImageDetails.LaunchMode,
		})
		if err != nil {
			return err
		}
		r.TargetImageID = result.ID
		if err := j.Checkpoint(ctx); err != nil {
			return err
		}
		h.logger.Successf("Image import started: %s", result.ID)
		h.logger.Info("Image import can take a while to complete")
	}
	if _, err := h.target.WaitForImageAvailable(ctx, r.TargetImageID); err != nil {
		return err
	}
	r.TargetImageAvailable = true
	return nil
}

func (h *ComputeMigrationHandler) launchInstance(ctx context.Context, j *progress.Journal) error {
	r := j.Record()
	if r.Has(progress.KeyTargetInstanceID) {
		h.logger.Infof("Launch already started, resuming wait on instance %s", r.TargetInstanceID)
	} else {
		result, err := h.target.LaunchInstance(ctx, oci.LaunchInstanceDetails{
			CompartmentID:      h.config.TargetCompartmentID,
			AvailabilityDomain: h.config.TargetAvailabilityDomain,
			SubnetID:           h.config.TargetSubnetID,
			Shape:              h.config.TargetInstanceShape,
			DisplayName:        h.config.NewInstanceName,
			ImageID:            r.TargetImageID,
			OCPUs:              h.config.TargetShapeOCPUs,
			MemoryInGBs:        h.config.TargetShapeMemoryGBs,
		})
		if err != nil {
			return err
		}
		r.TargetInstanceID = result.ID
		if err := j.Checkpoint(ctx); err != nil {
			return err
		}
		h.logger.Successf("Instance launch started: %s", result.ID)
	}
	if _, err := h.target.WaitForInstanceRunning(ctx, r.TargetInstanceID); err != nil {
		return err
	}
	r.TargetInstanceRunning = true
	return nil
}
