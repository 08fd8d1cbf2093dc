package oci

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"

	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

func isNotFound(err error) bool {
	if serviceErr, ok := common.IsServiceError(err); ok && serviceErr.GetHTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

// Bucket reads and writes small objects in one Object Storage bucket. Reads
// and writes are never simulated, even when the client is in dry-run mode.
type Bucket struct {
	client *Client
	name   string
}

// Bucket returns a handle on the named bucket.
func (c *Client) Bucket(name string) *Bucket {
	return &Bucket{client: c, name: name}
}

// Location describes the named object for log messages.
func (b *Bucket) Location(objectName string) string {
	return fmt.Sprintf("oci://%s@%s/%s", b.name, b.client.region, objectName)
}

// GetObject returns the object content. A missing object yields an error
// matching fs.ErrNotExist.
func (b *Bucket) GetObject(ctx context.Context, objectName string) ([]byte, error) {
	namespace, err := b.client.namespaceVia(ctx, b.client.storage)
	if err != nil {
		return nil, err
	}

	var (
		data     []byte
		notFound bool
	)
	_, err = b.client.storage.Invoke(ctx, remote.Operation{
		Name: "os object get",
		Args: []string{"--bucket-name", b.name, "--name", objectName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := b.client.objectStorageClient()
			if err != nil {
				return nil, err
			}
			resp, err := client.GetObject(ctx, objectstorage.GetObjectRequest{
				NamespaceName: common.String(namespace),
				BucketName:    common.String(b.name),
				ObjectName:    common.String(objectName),
			})
			if err != nil {
				if isNotFound(err) {
					notFound = true
					return nil, nil
				}
				return nil, err
			}
			defer resp.Content.Close()
			data, err = io.ReadAll(resp.Content)
			return nil, err
		},
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, fmt.Errorf("object %s: %w", b.Location(objectName), fs.ErrNotExist)
	}
	return data, nil
}

// PutObject replaces the object content.
func (b *Bucket) PutObject(ctx context.Context, objectName string, data []byte) error {
	namespace, err := b.client.namespaceVia(ctx, b.client.storage)
	if err != nil {
		return err
	}
	_, err = b.client.storage.Invoke(ctx, remote.Operation{
		Name: "os object put",
		Args: []string{"--bucket-name", b.name, "--name", objectName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := b.client.objectStorageClient()
			if err != nil {
				return nil, err
			}
			contentLength := int64(len(data))
			_, err = client.PutObject(ctx, objectstorage.PutObjectRequest{
				NamespaceName: common.String(namespace),
				BucketName:    common.String(b.name),
				ObjectName:    common.String(objectName),
				ContentLength: &contentLength,
				PutObjectBody: io.NopCloser(bytes.NewReader(data)),
				ContentType:   common.String("application/json"),
			})
			return nil, err
		},
	})
	return err
}

// BucketExists reports whether the named bucket exists.
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	namespace, err := c.Namespace(ctx)
	if err != nil {
		return false, err
	}
	exists := true
	_, err = c.invoker.Invoke(ctx, remote.Operation{
		Name: "os bucket get",
		Args: []string{"--bucket-name", bucketName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.objectStorageClient()
			if err != nil {
				return nil, err
			}
			_, err = client.HeadBucket(ctx, objectstorage.HeadBucketRequest{
				NamespaceName: common.String(namespace),
				BucketName:    common.String(bucketName),
			})
			if isNotFound(err) {
				exists = false
				return nil, nil
			}
			return nil, err
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check bucket %s: %w", bucketName, err)
	}
	return exists, nil
}

// CheckCompartment verifies that a compartment is accessible.
func (c *Client) CheckCompartment(ctx context.Context, compartmentID string) error {
	_, err := c.invoker.Invoke(ctx, remote.Operation{
		Name: "iam compartment get",
		Args: []string{"--compartment-id", compartmentID},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.identityClient()
			if err != nil {
				return nil, err
			}
			_, err = client.GetCompartment(ctx, identity.GetCompartmentRequest{
				CompartmentId: common.String(compartmentID),
			})
			return nil, accessError(err)
		},
	})
	if err != nil {
		return fmt.Errorf("compartment %s not accessible: %w", compartmentID, err)
	}
	return nil
}

// CheckSubnet verifies that a subnet is accessible.
func (c *Client) CheckSubnet(ctx context.Context, subnetID string) error {
	_, err := c.invoker.Invoke(ctx, remote.Operation{
		Name: "network subnet get",
		Args: []string{"--subnet-id", subnetID},
		Call: func(ctx context.Context) (*remote.Result, error) {
			client, err := c.virtualNetworkClient()
			if err != nil {
				return nil, err
			}
			_, err = client.GetSubnet(ctx, core.GetSubnetRequest{
				SubnetId: common.String(subnetID),
			})
			return nil, accessError(err)
		},
	})
	if err != nil {
		return fmt.Errorf("subnet %s not accessible: %w", subnetID, err)
	}
	return nil
}

// accessError marks a 404 on a lookup as fatal.
func accessError(err error) error {
	if err != nil && isNotFound(err) {
		return &remote.FatalError{Operation: "lookup", Err: err}
	}
	return err
}
