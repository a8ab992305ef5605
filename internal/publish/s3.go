package publish

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"census-typology/internal/domain"
)

// S3Publisher uploads files to an S3-compatible bucket.
type S3Publisher struct {
	client *s3.Client
	dest   Destination
}

var _ domain.Publisher = (*S3Publisher)(nil)

// NewS3Publisher creates a publisher with static credentials. A custom
// endpoint switches to path-style addressing, which MinIO and Hetzner need.
func NewS3Publisher(dest Destination, creds Credentials) (*S3Publisher, error) {
	if creds.S3KeyID == "" || creds.S3Secret == "" {
		return nil, domain.ErrConfiguration("s3 publishing needs an access key and secret")
	}
	region := creds.S3Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(creds.S3KeyID, creds.S3Secret, ""),
	}
	if creds.S3Endpoint != "" {
		endpoint := creds.S3Endpoint
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return &S3Publisher{client: s3.New(opts), dest: dest}, nil
}

// Publish implements domain.Publisher.
func (p *S3Publisher) Publish(ctx context.Context, name string, r io.Reader) error {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		body = bytes.NewReader(buf)
	}
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.dest.Bucket),
		Key:         aws.String(p.dest.key(name)),
		Body:        body,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", p.dest.Bucket, p.dest.key(name), err)
	}
	return nil
}

// Destination implements domain.Publisher.
func (p *S3Publisher) Destination() string {
	return p.dest.String()
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
