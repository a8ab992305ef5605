// Package ddl builds the DuckDB statements used to stage the building
// inventory: remote-storage secrets, extension loading and the inventory load.
package ddl

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const maxIdentifierLen = 128

// ValidateIdentifier checks that name is a plain SQL identifier.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is required")
	case len(name) > maxIdentifierLen:
		return fmt.Errorf("name must be at most %d characters", maxIdentifierLen)
	case !identifierRe.MatchString(name):
		return fmt.Errorf("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// QuoteIdentifier double-quotes an identifier. Census headers such as
// "No. edificaciones" are not plain identifiers, so every column reference
// goes through here.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string value.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// SourceFormat reports the reader for an inventory path: "parquet" for
// .parquet files, "csv" otherwise.
func SourceFormat(source string) string {
	if strings.EqualFold(path.Ext(source), ".parquet") {
		return "parquet"
	}
	return "csv"
}

// LoadInventory returns the statement materialising an inventory file as a
// table. CSV files are read with every column as VARCHAR so that census
// codes keep their leading zeros; delim is auto-detected when empty.
func LoadInventory(table, source, delim string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if source == "" {
		return "", fmt.Errorf("source path is required")
	}
	if SourceFormat(source) == "parquet" {
		return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)",
			QuoteIdentifier(table), QuoteLiteral(source)), nil
	}
	opts := "header = true, all_varchar = true"
	if delim != "" {
		opts += ", delim = " + QuoteLiteral(delim)
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv(%s, %s)",
		QuoteIdentifier(table), QuoteLiteral(source), opts), nil
}

// DescribeTable returns a DESCRIBE statement for table.
func DescribeTable(table string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return "DESCRIBE " + QuoteIdentifier(table), nil
}

// LoadExtension returns the statements installing and loading a DuckDB
// extension.
func LoadExtension(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid extension name: %w", err)
	}
	return fmt.Sprintf("INSTALL %s; LOAD %s;", name, name), nil
}

// CreateS3Secret returns a CREATE SECRET statement for S3-compatible storage.
func CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	parts := []string{
		"TYPE S3",
		"KEY_ID " + QuoteLiteral(keyID),
		"SECRET " + QuoteLiteral(secret),
		"REGION " + QuoteLiteral(region),
	}
	if endpoint != "" {
		parts = append(parts, "ENDPOINT "+QuoteLiteral(endpoint))
	}
	if urlStyle != "" {
		parts = append(parts, "URL_STYLE "+QuoteLiteral(urlStyle))
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", QuoteIdentifier(name), strings.Join(parts, ", ")), nil
}

// CreateGCSSecret returns a CREATE SECRET statement for Google Cloud Storage
// HMAC credentials.
func CreateGCSSecret(name, keyID, secret string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (TYPE GCS, KEY_ID %s, SECRET %s)",
		QuoteIdentifier(name), QuoteLiteral(keyID), QuoteLiteral(secret)), nil
}

// CreateAzureSecret returns a CREATE SECRET statement for Azure Blob Storage.
func CreateAzureSecret(name, accountName, accountKey string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	conn := fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		accountName, accountKey)
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (TYPE AZURE, CONNECTION_STRING %s)",
		QuoteIdentifier(name), QuoteLiteral(conn)), nil
}
