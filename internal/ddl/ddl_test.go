package ddl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "simple", input: "inventory"},
		{name: "underscore_prefix", input: "_counts"},
		{name: "max_length", input: strings.Repeat("a", 128)},

		{name: "empty", input: "", wantErr: "name is required"},
		{name: "too_long", input: strings.Repeat("a", 129), wantErr: "at most 128 characters"},
		{name: "starts_with_digit", input: "1table", wantErr: "must match"},
		{name: "contains_space", input: "No. edificaciones", wantErr: "must match"},
		{name: "sql_injection", input: "t; DROP TABLE x", wantErr: "must match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"No. edificaciones"`, QuoteIdentifier("No. edificaciones"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
	assert.Equal(t, `'/tmp/it''s here.csv'`, QuoteLiteral("/tmp/it's here.csv"))
	assert.Equal(t, `''`, QuoteLiteral(""))
}

func TestLoadInventory(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		source  string
		delim   string
		want    string
		wantErr string
	}{
		{
			name:   "csv_autodetect",
			table:  "inventory",
			source: "/data/conteos.csv",
			want:   `CREATE OR REPLACE TABLE "inventory" AS SELECT * FROM read_csv('/data/conteos.csv', header = true, all_varchar = true)`,
		},
		{
			name:   "csv_delim",
			table:  "inventory",
			source: "s3://census/conteos.txt",
			delim:  ";",
			want:   `CREATE OR REPLACE TABLE "inventory" AS SELECT * FROM read_csv('s3://census/conteos.txt', header = true, all_varchar = true, delim = ';')`,
		},
		{
			name:   "parquet",
			table:  "inventory",
			source: "/data/conteos.PARQUET",
			want:   `CREATE OR REPLACE TABLE "inventory" AS SELECT * FROM read_parquet('/data/conteos.PARQUET')`,
		},
		{name: "bad_table", table: "in ventory", source: "x.csv", wantErr: "invalid table name"},
		{name: "no_source", table: "inventory", wantErr: "source path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadInventory(tt.table, tt.source, tt.delim)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadExtension(t *testing.T) {
	got, err := LoadExtension("httpfs")
	require.NoError(t, err)
	assert.Equal(t, "INSTALL httpfs; LOAD httpfs;", got)

	_, err = LoadExtension("httpfs; DROP")
	assert.Error(t, err)
}

func TestCreateSecrets(t *testing.T) {
	t.Run("s3", func(t *testing.T) {
		got, err := CreateS3Secret("inv", "key'id", "secret", "minio:9000", "us-east-1", "path")
		require.NoError(t, err)
		for _, s := range []string{
			`CREATE OR REPLACE SECRET "inv"`,
			`TYPE S3`,
			`KEY_ID 'key''id'`,
			`ENDPOINT 'minio:9000'`,
			`URL_STYLE 'path'`,
		} {
			assert.Contains(t, got, s)
		}
	})

	t.Run("s3_without_endpoint", func(t *testing.T) {
		got, err := CreateS3Secret("inv", "k", "s", "", "us-east-1", "")
		require.NoError(t, err)
		assert.NotContains(t, got, "ENDPOINT")
		assert.NotContains(t, got, "URL_STYLE")
	})

	t.Run("gcs", func(t *testing.T) {
		got, err := CreateGCSSecret("inv", "GOOG1", "s")
		require.NoError(t, err)
		assert.Contains(t, got, `TYPE GCS, KEY_ID 'GOOG1', SECRET 's'`)
	})

	t.Run("azure", func(t *testing.T) {
		got, err := CreateAzureSecret("inv", "acct", "key==")
		require.NoError(t, err)
		assert.Contains(t, got, "AccountName=acct;AccountKey=key==")
	})

	t.Run("empty_name", func(t *testing.T) {
		_, err := CreateS3Secret("", "", "", "", "", "")
		assert.ErrorContains(t, err, "secret name is required")
		_, err = CreateGCSSecret("", "", "")
		assert.ErrorContains(t, err, "secret name is required")
		_, err = CreateAzureSecret("", "", "")
		assert.ErrorContains(t, err, "secret name is required")
	})
}
