// Package azure stores migration progress in Azure Blob Storage.
package azure

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/codebypatrickleung/ocimigrate/internal/logger"
	"github.com/codebypatrickleung/ocimigrate/internal/remote"
)

// blobAPI is the subset of *azblob.Client used here.
type blobAPI interface {
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobClient reads and writes blobs in a single container. Every request
// goes through a remote.Invoker, so transient failures are retried.
type BlobClient struct {
	accountURL string
	container  string
	api        blobAPI
	invoker    *remote.Invoker
	logger     *logger.Logger
}

// NewBlobClient creates a client for container in the storage account at
// accountURL. An account URL carrying a SAS token is used as is; otherwise
// the default Azure credential chain is used.
func NewBlobClient(accountURL, container string, policy remote.Policy, log *logger.Logger) (*BlobClient, error) {
	var (
		client *azblob.Client
		err    error
	)
	if strings.Contains(accountURL, "?") {
		client, err = azblob.NewClientWithNoCredential(accountURL, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(accountURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return newBlobClient(accountURL, container, client, remote.NewInvoker(accountHost(accountURL), policy, false, log, nil), log), nil
}

func newBlobClient(accountURL, container string, api blobAPI, inv *remote.Invoker, log *logger.Logger) *BlobClient {
	return &BlobClient{
		accountURL: accountURL,
		container:  container,
		api:        api,
		invoker:    inv,
		logger:     log,
	}
}

// accountHost names the storage account in command logs.
func accountHost(accountURL string) string {
	if u, err := url.Parse(accountURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "azure"
}

// Location describes the named blob for log messages.
func (c *BlobClient) Location(blobName string) string {
	base := c.accountURL
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, "/") + "/" + c.container + "/" + blobName
}

// GetObject downloads a blob. A missing blob or container yields an error
// matching fs.ErrNotExist.
func (c *BlobClient) GetObject(ctx context.Context, blobName string) ([]byte, error) {
	var (
		data     []byte
		notFound bool
	)
	_, err := c.invoker.Invoke(ctx, remote.Operation{
		Name: "storage blob download",
		Args: []string{"--container-name", c.container, "--name", blobName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			resp, err := c.api.DownloadStream(ctx, c.container, blobName, nil)
			if err != nil {
				if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
					notFound = true
					return nil, nil
				}
				return nil, err
			}
			defer resp.Body.Close()
			data, err = io.ReadAll(resp.Body)
			return nil, err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	if notFound {
		return nil, fmt.Errorf("blob %s: %w", c.Location(blobName), fs.ErrNotExist)
	}
	return data, nil
}

// PutObject uploads data as a block blob, replacing any existing content.
func (c *BlobClient) PutObject(ctx context.Context, blobName string, data []byte) error {
	c.logger.Debugf("Uploading %d bytes to blob %s", len(data), c.Location(blobName))
	_, err := c.invoker.Invoke(ctx, remote.Operation{
		Name: "storage blob upload",
		Args: []string{"--container-name", c.container, "--name", blobName},
		Call: func(ctx context.Context) (*remote.Result, error) {
			_, err := c.api.UploadBuffer(ctx, c.container, blobName, data, nil)
			return nil, err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob: %w", err)
	}
	return nil
}
