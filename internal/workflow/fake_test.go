package workflow

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/codebypatrickleung/ocimigrate/internal/cloud/oci"
	"github.com/codebypatrickleung/ocimigrate/internal/config"
	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

// fakeRegion is an in-memory RegionClient that records every call.
type fakeRegion struct {
	region string
	calls  []string
	errs   map[string]error
	onCall func(region, method string)

	imported oci.ImportImageDetails
	launched oci.LaunchInstanceDetails
}

func newFakeRegion(region string) *fakeRegion {
	return &fakeRegion{region: region, errs: map[string]error{}}
}

func (f *fakeRegion) call(method string) error {
	f.calls = append(f.calls, method)
	if f.onCall != nil {
		f.onCall(f.region, method)
	}
	return f.errs[method]
}

func (f *fakeRegion) count(method string) int {
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *fakeRegion) Region() string { return f.region }

func (f *fakeRegion) Namespace(context.Context) (string, error) {
	if err := f.call("Namespace"); err != nil {
		return "", err
	}
	return "tenancy-ns", nil
}

func (f *fakeRegion) ObjectURI(namespace, bucketName, objectName string) string {
	return fmt.Sprintf("https://objectstorage.%s.oraclecloud.com/n/%s/b/%s/o/%s", f.region, namespace, bucketName, objectName)
}

func (f *fakeRegion) CheckCompartment(context.Context, string) error {
	return f.call("CheckCompartment")
}

func (f *fakeRegion) CheckSubnet(context.Context, string) error {
	return f.call("CheckSubnet")
}

func (f *fakeRegion) BucketExists(context.Context, string) (bool, error) {
	if err := f.call("BucketExists"); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeRegion) CreateImage(context.Context, string, string, string) (*remote.Result, error) {
	if err := f.call("CreateImage"); err != nil {
		return nil, err
	}
	return &remote.Result{ID: "ocid1.image." + f.region}, nil
}

func (f *fakeRegion) WaitForImageAvailable(_ context.Context, imageID string) (*remote.Result, error) {
	if err := f.call("WaitForImageAvailable"); err != nil {
		return nil, err
	}
	return &remote.Result{
		ID:    imageID,
		State: "AVAILABLE",
		Attributes: map[string]string{
			oci.AttrOperatingSystem:        "Oracle Linux",
			oci.AttrOperatingSystemVersion: "8",
			oci.AttrLaunchMode:             "PARAVIRTUALIZED",
		},
	}, nil
}

func (f *fakeRegion) ExportImage(context.Context, string, string, string, string) (*remote.Result, error) {
	if err := f.call("ExportImage"); err != nil {
		return nil, err
	}
	return &remote.Result{ID: "ocid1.workrequest." + f.region}, nil
}

func (f *fakeRegion) WaitForWorkRequest(_ context.Context, id string) (*remote.Result, error) {
	if err := f.call("WaitForWorkRequest"); err != nil {
		return nil, err
	}
	return &remote.Result{ID: id, State: "SUCCEEDED"}, nil
}

func (f *fakeRegion) ImportImage(_ context.Context, d oci.ImportImageDetails) (*remote.Result, error) {
	if err := f.call("ImportImage"); err != nil {
		return nil, err
	}
	f.imported = d
	return &remote.Result{ID: "ocid1.image." + f.region}, nil
}

func (f *fakeRegion) LaunchInstance(_ context.Context, d oci.LaunchInstanceDetails) (*remote.Result, error) {
	if err := f.call("LaunchInstance"); err != nil {
		return nil, err
	}
	f.launched = d
	return &remote.Result{ID: "ocid1.instance." + f.region}, nil
}

func (f *fakeRegion) WaitForInstanceRunning(_ context.Context, id string) (*remote.Result, error) {
	if err := f.call("WaitForInstanceRunning"); err != nil {
		return nil, err
	}
	return &remote.Result{ID: id, State: "RUNNING"}, nil
}

type fakeRegions struct {
	source *fakeRegion
	target *fakeRegion
}

func newFakeRegions() *fakeRegions {
	return &fakeRegions{
		source: newFakeRegion("us-ashburn-1"),
		target: newFakeRegion("sa-bogota-1"),
	}
}

func (f *fakeRegions) factory(region string) RegionClient {
	if region == f.source.region {
		return f.source
	}
	return f.target
}

func (f *fakeRegions) totalCalls() int {
	return len(f.source.calls) + len(f.target.calls)
}

func testConfig() *config.Config {
	return &config.Config{
		SourceRegion:             "us-ashburn-1",
		SourceCompartmentID:      "ocid1.compartment.src",
		SourceInstanceID:         "ocid1.instance.src",
		MigrationBucketName:      "ashburn-migration-staging-bucket",
		TargetRegion:             "sa-bogota-1",
		TargetCompartmentID:      "ocid1.compartment.dst",
		TargetSubnetID:           "ocid1.subnet.dst",
		TargetAvailabilityDomain: "EXAMPLE-AD-1",
		TargetInstanceShape:      "VM.Standard.E4.Flex",
		TargetShapeOCPUs:         2,
		TargetShapeMemoryGBs:     16,
		NewImageName:             "migrated-app-server-image",
		NewInstanceName:          "migrated-app-server-bogota",
		StateFilePath:            "migration.state.json",
		ProgressBackend:          config.BackendFile,
		PollInterval:             30 * time.Second,
		InstancePollInterval:     20 * time.Second,
		RetryMaxAttempts:         5,
		RetryMinDelay:            5 * time.Second,
		RetryMaxDelay:            time.Minute,
		RetryMultiplier:          2,
	}
}

func testLogger() (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.NewWithWriter(false, &buf), &buf
}
