// Package oci provides region-scoped OCI operations.
//
// Every call goes through a remote.Invoker, so it is retried on transient
// failures and simulated in dry-run mode. SDK clients are created per call;
// a client that cannot be created is reported as a remote.FatalError.
package oci

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/oracle/oci-go-sdk/v65/workrequests"

	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

// Attribute names carried in remote.Result.Attributes.
const (
	AttrOperatingSystem        = "operating-system"
	AttrOperatingSystemVersion = "operating-system-version"
	AttrLaunchMode             = "launch-mode"
)

// Options configures a Client.
type Options struct {
	// ConfigFile and Profile select the OCI SDK configuration. Both empty
	// means the SDK default provider.
	ConfigFile string
	Profile    string

	Policy               remote.Policy
	DryRun               bool
	PollInterval         time.Duration
	InstancePollInterval time.Duration

	// Clock drives retry and poll waits. Nil means the wall clock.
	Clock clock.Clock
}

// Client performs OCI operations in a single region.
type Client struct {
	region         string
	configProvider common.ConfigurationProvider
	invoker        *remote.Invoker
	storage        *remote.Invoker
	poller         *remote.Poller
	logger         *logger.Logger

	pollInterval         time.Duration
	instancePollInterval time.Duration

	mu        sync.Mutex
	namespace string
}

// NewClient creates a client bound to region.
func NewClient(region string, opts Options, log *logger.Logger) *Client {
	log = log.With(region)
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	instancePollInterval := opts.InstancePollInterval
	if instancePollInterval <= 0 {
		instancePollInterval = 20 * time.Second
	}
	return &Client{
		region:         region,
		configProvider: newConfigProvider(opts.ConfigFile, opts.Profile),
		invoker:        remote.NewInvoker(region, opts.Policy, opts.DryRun, log, clk),
		// Progress objects are read for real even in dry-run mode.
		storage:              remote.NewInvoker(region, opts.Policy, false, log, clk),
		poller:               remote.NewPoller(opts.DryRun, log, clk),
		logger:               log,
		pollInterval:         pollInterval,
		instancePollInterval: instancePollInterval,
	}
}

func newConfigProvider(configFile, profile string) common.ConfigurationProvider {
	if configFile == "" && profile == "" {
		return common.DefaultConfigProvider()
	}
	if profile == "" {
		profile = "DEFAULT"
	}
	return common.CustomProfileConfigProvider(configFile, profile)
}

// Region returns the region this client is bound to.
func (c *Client) Region() string {
	return c.region
}

// DryRun reports whether operations are simulated.
func (c *Client) DryRun() bool {
	return c.invoker.DryRun()
}

func (c *Client) computeClient() (core.ComputeClient, error) {
	client, err := core.NewComputeClientWithConfigurationProvider(c.configProvider)
	if err != nil {
		return client, &remote.FatalError{Operation: "create compute client", Err: err}
	}
	client.SetRegion(c.region)
	return client, nil
}

func (c *Client) workRequestClient() (workrequests.WorkRequestClient, error) {
	client, err := workrequests.NewWorkRequestClientWithConfigurationProvider(c.configProvider)
	if err != nil {
		return client, &remote.FatalError{Operation: "create work request client", Err: err}
	}
	client.SetRegion(c.region)
	return client, nil
}

func (c *Client) objectStorageClient() (objectstorage.ObjectStorageClient, error) {
	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(c.configProvider)
	if err != nil {
		return client, &remote.FatalError{Operation: "create object storage client", Err: err}
	}
	client.SetRegion(c.region)
	return client, nil
}

func (c *Client) identityClient() (identity.IdentityClient, error) {
	client, err := identity.NewIdentityClientWithConfigurationProvider(c.configProvider)
	if err != nil {
		return client, &remote.FatalError{Operation: "create identity client", Err: err}
	}
	client.SetRegion(c.region)
	return client, nil
}

func (c *Client) virtualNetworkClient() (core.VirtualNetworkClient, error) {
	client, err := core.NewVirtualNetworkClientWithConfigurationProvider(c.configProvider)
	if err != nil {
		return client, &remote.FatalError{Operation: "create virtual network client", Err: err}
	}
	client.SetRegion(c.region)
	return client, nil
}

// requireID returns a ProtocolError when a response carries no identifier.
func requireID(operation string, id *string) (string, error) {
	if id == nil || *id == "" {
		return "", &remote.ProtocolError{Operation: operation, Detail: "response has no id"}
	}
	return *id, nil
}

// ObjectURI returns the Object Storage URI of an object in this region.
func (c *Client) ObjectURI(namespace, bucketName, objectName string) string {
	return fmt.Sprintf("https://objectstorage.%s.oraclecloud.com/n/%s/b/%s/o/%s",
		c.region, namespace, bucketName, url.PathEscape(objectName))
}

// Namespace returns the Object Storage namespace of the tenancy. The value is
// cached after the first successful lookup.
func (c *Client) Namespace(ctx context.Context) (string, error) {
	return c.namespaceVia(ctx, c.invoker)
}

func (c *Client) namespaceVia(ctx context.Context, inv *remote.Invoker) (string, error) {
	c.mu.Lock()
	cached := c.namespace
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	const op = "os ns get"
	result, err := inv.Invoke(ctx, remote.Operation{
		Name: op,
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.objectStorageClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
			if err != nil {
				return nil, err
			}
			if resp.Value == nil || *resp.Value == "" {
				return nil, &remote.ProtocolError{Operation: op, Detail: "response has no namespace"}
			}
			return &remote.Result{ID: *resp.Value}, nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get namespace: %w", err)
	}
	if !result.DryRun {
		c.mu.Lock()
		c.namespace = result.ID
		c.mu.Unlock()
	}
	return result.ID, nil
}
