package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"census-typology/internal/domain"
)

// AzurePublisher uploads files to an Azure Blob Storage container.
type AzurePublisher struct {
	client *azblob.Client
	dest   Destination
}

var _ domain.Publisher = (*AzurePublisher)(nil)

// NewAzurePublisher creates a publisher with shared-key credentials.
func NewAzurePublisher(dest Destination, creds Credentials) (*AzurePublisher, error) {
	if creds.AzureAccount == "" || creds.AzureKey == "" {
		return nil, domain.ErrConfiguration("azure publishing needs an account name and key")
	}
	cred, err := azblob.NewSharedKeyCredential(creds.AzureAccount, creds.AzureKey)
	if err != nil {
		return nil, domain.ErrConfiguration("create shared key credential: %v", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", creds.AzureAccount)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, domain.ErrConfiguration("create Azure blob client: %v", err)
	}
	return &AzurePublisher{client: client, dest: dest}, nil
}

// Publish implements domain.Publisher.
func (p *AzurePublisher) Publish(ctx context.Context, name string, r io.Reader) error {
	key := p.dest.key(name)
	if _, err := p.client.UploadStream(ctx, p.dest.Bucket, key, r, nil); err != nil {
		return fmt.Errorf("upload az://%s/%s: %w", p.dest.Bucket, key, err)
	}
	return nil
}

// Destination implements domain.Publisher.
func (p *AzurePublisher) Destination() string {
	return p.dest.String()
}
