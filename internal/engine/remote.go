package engine

import (
	"context"
	"database/sql"
	"strings"

	"census-typology/internal/ddl"
	"census-typology/internal/domain"
)

// Credentials let DuckDB read an inventory held in object storage.
type Credentials struct {
	S3KeyID      string
	S3Secret     string
	S3Endpoint   string
	S3Region     string
	GCSKeyID     string // HMAC key
	GCSSecret    string
	AzureAccount string
	AzureKey     string
}

const secretName = "inventory_source"

// prepareRemote loads the extension and secret DuckDB needs to read source.
// Local paths need nothing.
func prepareRemote(ctx context.Context, db *sql.DB, source string, c Credentials) error {
	var ext, secret string
	var err error
	switch {
	case strings.HasPrefix(source, "s3://"):
		ext = "httpfs"
		if c.S3KeyID != "" {
			urlStyle := ""
			if c.S3Endpoint != "" {
				urlStyle = "path"
			}
			secret, err = ddl.CreateS3Secret(secretName, c.S3KeyID, c.S3Secret, c.S3Endpoint, c.S3Region, urlStyle)
		}
	case strings.HasPrefix(source, "gs://"), strings.HasPrefix(source, "gcs://"):
		ext = "httpfs"
		if c.GCSKeyID != "" {
			secret, err = ddl.CreateGCSSecret(secretName, c.GCSKeyID, c.GCSSecret)
		}
	case strings.HasPrefix(source, "az://"), strings.HasPrefix(source, "azure://"):
		ext = "azure"
		if c.AzureAccount != "" {
			secret, err = ddl.CreateAzureSecret(secretName, c.AzureAccount, c.AzureKey)
		}
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		ext = "httpfs"
	default:
		return nil
	}
	if err != nil {
		return domain.ErrConfiguration("inventory credentials: %v", err)
	}

	stmt, err := ddl.LoadExtension(ext)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return domain.ErrConfiguration("load duckdb extension %s: %v", ext, err)
	}
	if secret != "" {
		if _, err := db.ExecContext(ctx, secret); err != nil {
			return domain.ErrConfiguration("create inventory secret: %v", err)
		}
	}
	return nil
}
