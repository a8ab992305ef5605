// Package publish copies finished output files to their destination: a
// local directory or an object-storage prefix.
package publish

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"census-typology/internal/domain"
)

// Destination is a parsed publish URL.
type Destination struct {
	Scheme string // file, s3, gs or az
	Bucket string // bucket or container; empty for file
	Prefix string // directory for file, key prefix otherwise
}

func (d Destination) String() string {
	if d.Scheme == "file" {
		return "file://" + d.Prefix
	}
	if d.Prefix == "" {
		return d.Scheme + "://" + d.Bucket
	}
	return d.Scheme + "://" + d.Bucket + "/" + d.Prefix
}

// key returns the object key for a file name.
func (d Destination) key(name string) string {
	if d.Prefix == "" {
		return name
	}
	return path.Join(d.Prefix, name)
}

// ParseDestination parses file://dir, s3://bucket/prefix, gs://bucket/prefix
// or az://container/prefix. A bare path is a local directory.
func ParseDestination(raw string) (Destination, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Destination{}, domain.ErrConfiguration("publish destination is empty")
	}
	if !strings.Contains(raw, "://") {
		return Destination{Scheme: "file", Prefix: raw}, nil
	}
	if strings.HasPrefix(raw, "file://") {
		dir := strings.TrimPrefix(raw, "file://")
		if dir == "" {
			return Destination{}, domain.ErrConfiguration("publish destination %q has no directory", raw)
		}
		return Destination{Scheme: "file", Prefix: dir}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Destination{}, domain.ErrConfiguration("parse publish destination %q: %v", raw, err)
	}
	switch u.Scheme {
	case "s3", "gs", "az":
	case "gcs":
		u.Scheme = "gs"
	case "azure":
		u.Scheme = "az"
	default:
		return Destination{}, domain.ErrConfiguration("unsupported publish scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Destination{}, domain.ErrConfiguration("publish destination %q has no bucket", raw)
	}
	return Destination{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// Credentials for the object-storage publishers.
type Credentials struct {
	S3KeyID      string
	S3Secret     string
	S3Endpoint   string
	S3Region     string
	GCSKeyFile   string
	AzureAccount string
	AzureKey     string
}

// New returns the publisher for a destination URL.
func New(ctx context.Context, raw string, creds Credentials) (domain.Publisher, error) {
	dest, err := ParseDestination(raw)
	if err != nil {
		return nil, err
	}
	switch dest.Scheme {
	case "file":
		return NewFilePublisher(dest.Prefix), nil
	case "s3":
		return NewS3Publisher(dest, creds)
	case "gs":
		return NewGCSPublisher(ctx, dest, creds)
	default:
		return NewAzurePublisher(dest, creds)
	}
}

// FilePublisher copies files into a local directory.
type FilePublisher struct {
	dir string
}

var _ domain.Publisher = (*FilePublisher)(nil)

// NewFilePublisher creates a FilePublisher.
func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{dir: dir}
}

// Publish implements domain.Publisher.
func (p *FilePublisher) Publish(_ context.Context, name string, r io.Reader) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create publish directory: %w", err)
	}
	target := filepath.Join(p.dir, filepath.Base(name))
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("copy %s: %w", target, err)
	}
	return f.Close()
}

// Destination implements domain.Publisher.
func (p *FilePublisher) Destination() string {
	return "file://" + p.dir
}

// PublishFiles publishes each local file under its base name.
func PublishFiles(ctx context.Context, pub domain.Publisher, paths ...string) error {
	for _, p := range paths {
		if err := publishFile(ctx, pub, p); err != nil {
			return err
		}
	}
	return nil
}

func publishFile(ctx context.Context, pub domain.Publisher, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close() //nolint:errcheck
	if err := pub.Publish(ctx, filepath.Base(p), f); err != nil {
		return fmt.Errorf("publish %s to %s: %w", filepath.Base(p), pub.Destination(), err)
	}
	return nil
}
