package publish

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"census-typology/internal/domain"
)

// GCSPublisher uploads files to a Google Cloud Storage bucket.
type GCSPublisher struct {
	client *storage.Client
	dest   Destination
}

var _ domain.Publisher = (*GCSPublisher)(nil)

// NewGCSPublisher creates a publisher authenticated with a service-account
// key file, or with application default credentials when none is given.
func NewGCSPublisher(ctx context.Context, dest Destination, creds Credentials) (*GCSPublisher, error) {
	var opts []option.ClientOption
	if creds.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, creds.GCSKeyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, domain.ErrConfiguration("create GCS client: %v", err)
	}
	return &GCSPublisher{client: client, dest: dest}, nil
}

// Publish implements domain.Publisher.
func (p *GCSPublisher) Publish(ctx context.Context, name string, r io.Reader) error {
	key := p.dest.key(name)
	w := p.client.Bucket(p.dest.Bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(name)
	if _, err := io.Copy(w, r); err != nil {
		w.Close() //nolint:errcheck
		return fmt.Errorf("write gs://%s/%s: %w", p.dest.Bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", p.dest.Bucket, key, err)
	}
	return nil
}

// Destination implements domain.Publisher.
func (p *GCSPublisher) Destination() string {
	return p.dest.String()
}

// Close releases the GCS client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}
