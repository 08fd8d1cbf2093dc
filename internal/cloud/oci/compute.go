package oci

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/workrequests"

	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

// Terminal states.
var (
	imageFailureStates       = []string{string(core.ImageLifecycleStateDisabled), "FAULTED", string(core.ImageLifecycleStateDeleted)}
	workRequestFailureStates = []string{string(workrequests.WorkRequestStatusFailed), string(workrequests.WorkRequestStatusCanceled)}
	instanceFailureStates    = []string{
		string(core.InstanceLifecycleStateTerminating),
		string(core.InstanceLifecycleStateTerminated),
		"FAULTED",
	}
)

// DryRunImageAttributes are the image attributes reported in dry-run mode.
var DryRunImageAttributes = map[string]string{
	AttrOperatingSystem:        "DRY_RUN_OS",
	AttrOperatingSystemVersion: "DRY_RUN_OS_VER",
	AttrLaunchMode:             "DRY_RUN_LAUNCH_MODE",
}

// ImportImageDetails describes an image import from Object Storage.
type ImportImageDetails struct {
	CompartmentID          string
	DisplayName            string
	SourceURI              string
	OperatingSystem        string
	OperatingSystemVersion string
	LaunchMode             string
}

// LaunchInstanceDetails describes a new instance booted from an image.
type LaunchInstanceDetails struct {
	CompartmentID      string
	AvailabilityDomain string
	SubnetID           string
	Shape              string
	DisplayName        string
	ImageID            string

	// OCPUs and MemoryInGBs configure flexible shapes. Zero means unset.
	OCPUs       float32
	MemoryInGBs float32
}

// CreateImage starts creating a custom image from an instance.
func (c *Client) CreateImage(ctx context.Context, compartmentID, instanceID, displayName string) (*remote.Result, error) {
	const op = "compute image create"
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: []string{"--compartment-id", compartmentID, "--instance-id", instanceID, "--display-name", displayName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.computeClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.CreateImage(ctx, core.CreateImageRequest{
				CreateImageDetails: core.CreateImageDetails{
					CompartmentId: common.String(compartmentID),
					InstanceId:    common.String(instanceID),
					DisplayName:   common.String(displayName),
				},
			})
			if err != nil {
				return nil, err
			}
			id, err := requireID(op, resp.Id)
			if err != nil {
				return nil, err
			}
			return &remote.Result{
				ID:            id,
				WorkRequestID: deref(resp.OpcWorkRequestId),
				State:         string(resp.LifecycleState),
			}, nil
		},
	})
}

// GetImage fetches an image. The result carries the lifecycle state and the
// operating system attributes.
func (c *Client) GetImage(ctx context.Context, imageID string) (*remote.Result, error) {
	const op = "compute image get"
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: []string{"--image-id", imageID},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.computeClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.GetImage(ctx, core.GetImageRequest{ImageId: common.String(imageID)})
			if err != nil {
				return nil, err
			}
			id, err := requireID(op, resp.Id)
			if err != nil {
				return nil, err
			}
			if resp.LifecycleState == "" {
				return nil, &remote.ProtocolError{Operation: op, Detail: "response has no lifecycle-state"}
			}
			return &remote.Result{
				ID:    id,
				State: string(resp.LifecycleState),
				Attributes: map[string]string{
					AttrOperatingSystem:        deref(resp.OperatingSystem),
					AttrOperatingSystemVersion: deref(resp.OperatingSystemVersion),
					AttrLaunchMode:             string(resp.LaunchMode),
				},
			}, nil
		},
	})
}

// ExportImage starts exporting an image to Object Storage. The result ID is
// the work request tracking the export.
func (c *Client) ExportImage(ctx context.Context, imageID, namespace, bucketName, objectName string) (*remote.Result, error) {
	const op = "compute image export to-object"
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: []string{"--image-id", imageID, "--namespace", namespace, "--bucket-name", bucketName, "--name", objectName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.computeClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.ExportImage(ctx, core.ExportImageRequest{
				ImageId: common.String(imageID),
				ExportImageDetails: core.ExportImageViaObjectStorageTupleDetails{
					NamespaceName: common.String(namespace),
					BucketName:    common.String(bucketName),
					ObjectName:    common.String(objectName),
				},
			})
			if err != nil {
				return nil, err
			}
			workRequestID, err := requireID(op, resp.OpcWorkRequestId)
			if err != nil {
				return nil, err
			}
			return &remote.Result{ID: workRequestID, WorkRequestID: workRequestID}, nil
		},
	})
}

// GetWorkRequest fetches the status of a work request.
func (c *Client) GetWorkRequest(ctx context.Context, workRequestID string) (*remote.Result, error) {
	const op = "work-requests work-request get"
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: []string{"--work-request-id", workRequestID},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.workRequestClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.GetWorkRequest(ctx, workrequests.GetWorkRequestRequest{
				WorkRequestId: common.String(workRequestID),
			})
			if err != nil {
				return nil, err
			}
			if resp.Status == "" {
				return nil, &remote.ProtocolError{Operation: op, Detail: "response has no status"}
			}
			return &remote.Result{
				ID:              workRequestID,
				WorkRequestID:   workRequestID,
				State:           string(resp.Status),
				PercentComplete: resp.PercentComplete,
			}, nil
		},
	})
}

// ImportImage starts importing an image from an Object Storage URI.
func (c *Client) ImportImage(ctx context.Context, d ImportImageDetails) (*remote.Result, error) {
	const op = "compute image import from-object-uri"
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: []string{
			"--compartment-id", d.CompartmentID,
			"--display-name", d.DisplayName,
			"--uri", d.SourceURI,
			"--operating-system", d.OperatingSystem,
			"--operating-system-version", d.OperatingSystemVersion,
			"--launch-mode", d.LaunchMode,
		},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.computeClient()
			if err != nil {
				return nil, err
			}
			details := core.CreateImageDetails{
				CompartmentId: common.String(d.CompartmentID),
				DisplayName:   common.String(d.DisplayName),
				ImageSourceDetails: core.ImageSourceViaObjectStorageUriDetails{
					SourceUri:              common.String(d.SourceURI),
					OperatingSystem:        optionalString(d.OperatingSystem),
					OperatingSystemVersion: optionalString(d.OperatingSystemVersion),
				},
			}
			if d.LaunchMode != "" {
				details.LaunchMode = core.CreateImageDetailsLaunchModeEnum(d.LaunchMode)
			}
			resp, err := client.CreateImage(ctx, core.CreateImageRequest{CreateImageDetails: details})
			if err != nil {
				return nil, err
			}
			id, err := requireID(op, resp.Id)
			if err != nil {
				return nil, err
			}
			return &remote.Result{
				ID:            id,
				WorkRequestID: deref(resp.OpcWorkRequestId),
				State:         string(resp.LifecycleState),
			}, nil
		},
	})
}

// LaunchInstance launches an instance from an image.
func (c *Client) LaunchInstance(ctx context.Context, d LaunchInstanceDetails) (*remote.Result, error) {
	const op = "compute instance launch"
	args := []string{
		"--availability-domain", d.AvailabilityDomain,
		"--compartment-id", d.CompartmentID,
		"--shape", d.Shape,
		"--subnet-id", d.SubnetID,
		"--image-id", d.ImageID,
		"--display-name", d.DisplayName,
	}
	if d.OCPUs > 0 {
		args = append(args, "--shape-config", fmt.Sprintf(`{"ocpus": %g, "memoryInGBs": %g}`, d.OCPUs, d.MemoryInGBs))
	}
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: args,
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.computeClient()
			if err != nil {
				return nil, err
			}
			details := core.LaunchInstanceDetails{
				AvailabilityDomain: common.String(d.AvailabilityDomain),
				CompartmentId:      common.String(d.CompartmentID),
				Shape:              common.String(d.Shape),
				DisplayName:        common.String(d.DisplayName),
				SourceDetails: core.InstanceSourceViaImageDetails{
					ImageId: common.String(d.ImageID),
				},
				CreateVnicDetails: &core.CreateVnicDetails{
					SubnetId: common.String(d.SubnetID),
				},
			}
			if d.OCPUs > 0 {
				details.ShapeConfig = &core.LaunchInstanceShapeConfigDetails{
					Ocpus:       common.Float32(d.OCPUs),
					MemoryInGBs: common.Float32(d.MemoryInGBs),
				}
			}
			resp, err := client.LaunchInstance(ctx, core.LaunchInstanceRequest{LaunchInstanceDetails: details})
			if err != nil {
				return nil, err
			}
			id, err := requireID(op, resp.Id)
			if err != nil {
				return nil, err
			}
			return &remote.Result{ID: id, State: string(resp.LifecycleState)}, nil
		},
	})
}

// GetInstance fetches the lifecycle state of an instance.
func (c *Client) GetInstance(ctx context.Context, instanceID string) (*remote.Result, error) {
	const op = "compute instance get"
	return c.invoker.Invoke(ctx, remote.Operation{
		Name: op,
		Args: []string{"--instance-id", instanceID},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.computeClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.GetInstance(ctx, core.GetInstanceRequest{InstanceId: common.String(instanceID)})
			if err != nil {
				return nil, err
			}
			id, err := requireID(op, resp.Id)
			if err != nil {
				return nil, err
			}
			if resp.LifecycleState == "" {
				return nil, &remote.ProtocolError{Operation: op, Detail: "response has no lifecycle-state"}
			}
			return &remote.Result{ID: id, State: string(resp.LifecycleState)}, nil
		},
	})
}

// WaitForImageAvailable polls an image until it is AVAILABLE.
func (c *Client) WaitForImageAvailable(ctx context.Context, imageID string) (*remote.Result, error) {
	return c.poller.Wait(ctx, remote.Target{
		Kind: "image",
		ID:   imageID,
		Fetch: func(ctx context.Context) (*remote.Result, error) {
			return c.GetImage(ctx, imageID)
		},
		Success:          string(core.ImageLifecycleStateAvailable),
		Failure:          imageFailureStates,
		Interval:         c.pollInterval,
		DryRunAttributes: DryRunImageAttributes,
	})
}

// WaitForWorkRequest polls a work request until it SUCCEEDED.
func (c *Client) WaitForWorkRequest(ctx context.Context, workRequestID string) (*remote.Result, error) {
	return c.poller.Wait(ctx, remote.Target{
		Kind: "work request",
		ID:   workRequestID,
		Fetch: func(ctx context.Context) (*remote.Result, error) {
			return c.GetWorkRequest(ctx, workRequestID)
		},
		Success:  string(workrequests.WorkRequestStatusSucceeded),
		Failure:  workRequestFailureStates,
		Interval: c.pollInterval,
	})
}

// WaitForInstanceRunning polls an instance until it is RUNNING.
func (c *Client) WaitForInstanceRunning(ctx context.Context, instanceID string) (*remote.Result, error) {
	return c.poller.Wait(ctx, remote.Target{
		Kind: "instance",
		ID:   instanceID,
		Fetch: func(ctx context.Context) (*remote.Result, error) {
			return c.GetInstance(ctx, instanceID)
		},
		Success:  string(core.InstanceLifecycleStateRunning),
		Failure:  instanceFailureStates,
		Interval: c.instancePollInterval,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return common.String(s)
}
