// Package config handles run configuration and environment loading.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"census-typology/internal/domain"
	"census-typology/internal/engine"
	"census-typology/internal/publish"
	"census-typology/internal/reference"
	"census-typology/internal/workbook"
)

// StorageConfig holds object-storage credentials, used both to read a remote
// inventory and to publish outputs. GCS inventories are read with HMAC keys;
// publishing to GCS uses the service account key file.
type StorageConfig struct {
	S3KeyID       string `yaml:"s3_key_id" json:"s3_key_id"`
	S3Secret      string `yaml:"s3_secret" json:"s3_secret"`
	S3Endpoint    string `yaml:"s3_endpoint" json:"s3_endpoint"`
	S3Region      string `yaml:"s3_region" json:"s3_region"`
	GCSKeyFile    string `yaml:"gcs_key_file" json:"gcs_key_file"`
	GCSHMACKeyID  string `yaml:"gcs_hmac_key_id" json:"gcs_hmac_key_id"`
	GCSHMACSecret string `yaml:"gcs_hmac_secret" json:"gcs_hmac_secret"`
	AzureAccount  string `yaml:"azure_account" json:"azure_account"`
	AzureKey      string `yaml:"azure_key" json:"azure_key"`
}

// Config holds the settings of a batch run.
type Config struct {
	// Mapping is the classification workbook (.xlsx), Inventory the building
	// inventory (csv or parquet, local or remote) and Municipalities the
	// latin-1 municipality reference list.
	Mapping        string `yaml:"mapping" json:"mapping"`
	Inventory      string `yaml:"inventory" json:"inventory"`
	Municipalities string `yaml:"municipalities" json:"municipalities"`

	Sheets    workbook.Sheets `yaml:"sheets" json:"sheets"`
	Columns   engine.Columns  `yaml:"columns" json:"columns"`
	Delimiter string          `yaml:"delimiter" json:"delimiter"`

	Departments []string `yaml:"departments" json:"departments"` // codes or names, empty means all
	Exclude     []int    `yaml:"exclude" json:"exclude"`

	BlockMode bool `yaml:"block_mode" json:"block_mode"`
	FailFast  bool `yaml:"fail_fast" json:"fail_fast"`
	Workers   int  `yaml:"workers" json:"workers"`
	Storeys   bool `yaml:"storeys" json:"storeys"`
	Dominant  bool `yaml:"dominant" json:"dominant"`

	OutputDir  string `yaml:"output_dir" json:"output_dir"`
	PublishURL string `yaml:"publish_url" json:"publish_url"`
	LedgerPath string `yaml:"ledger_path" json:"ledger_path"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
	Schedule   string `yaml:"schedule" json:"schedule"`

	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string `yaml:"-" json:"-"`
}

// Load reads the YAML file at path (optional when empty), overlays the
// environment and applies defaults. A .env file in the working directory is
// loaded first; variables already set take precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrConfiguration("load .env: %v", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
		if err != nil {
			return nil, domain.ErrConfiguration("read config %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.ErrConfiguration("parse config %s: %v", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Mapping, "TYPOLOGY_MAPPING")
	setString(&c.Inventory, "TYPOLOGY_INVENTORY")
	setString(&c.Municipalities, "TYPOLOGY_MUNICIPALITIES")
	setString(&c.Delimiter, "TYPOLOGY_DELIMITER")
	setString(&c.OutputDir, "TYPOLOGY_OUTPUT_DIR")
	setString(&c.PublishURL, "TYPOLOGY_PUBLISH_URL")
	setString(&c.LedgerPath, "TYPOLOGY_LEDGER_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Schedule, "TYPOLOGY_SCHEDULE")

	if v := os.Getenv("TYPOLOGY_DEPARTMENTS"); v != "" {
		c.Departments = compactNonEmpty(splitTrim(v))
	}
	if v := os.Getenv("TYPOLOGY_EXCLUDE"); v != "" {
		c.Exclude = nil
		for _, s := range compactNonEmpty(splitTrim(v)) {
			n, err := strconv.Atoi(s)
			if err != nil {
				return domain.ErrConfiguration("TYPOLOGY_EXCLUDE: malformed municipality code %q", s)
			}
			c.Exclude = append(c.Exclude, n)
		}
	}
	if v := os.Getenv("TYPOLOGY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.ErrConfiguration("TYPOLOGY_WORKERS: %q is not a number", v)
		}
		c.Workers = n
	}
	c.BlockMode = parseBoolEnvDefault("TYPOLOGY_BLOCK_MODE", c.BlockMode)
	c.FailFast = parseBoolEnvDefault("TYPOLOGY_FAIL_FAST", c.FailFast)
	c.Storeys = parseBoolEnvDefault("TYPOLOGY_STOREYS", c.Storeys)
	c.Dominant = parseBoolEnvDefault("TYPOLOGY_DOMINANT", c.Dominant)

	s := &c.Storage
	setString(&s.S3KeyID, "KEY_ID")
	setString(&s.S3Secret, "SECRET")
	setString(&s.S3Endpoint, "ENDPOINT")
	setString(&s.S3Region, "REGION")
	setString(&s.GCSKeyFile, "GCS_KEY_FILE")
	setString(&s.GCSHMACKeyID, "GCS_HMAC_KEY_ID")
	setString(&s.GCSHMACSecret, "GCS_HMAC_SECRET")
	setString(&s.AzureAccount, "AZURE_STORAGE_ACCOUNT")
	setString(&s.AzureKey, "AZURE_STORAGE_KEY")
	return nil
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "typology_runs.sqlite"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.Departments) == 0 {
		c.Warnings = append(c.Warnings, "no departments configured, processing every municipality in the reference list")
	}
	if c.Storage.S3KeyID != "" && c.Storage.S3Secret == "" {
		c.Warnings = append(c.Warnings, "KEY_ID is set without SECRET")
	}
}

// Validate checks that the inputs a batch needs are configured.
func (c *Config) Validate() error {
	var missing []string
	if c.Mapping == "" {
		missing = append(missing, "mapping")
	}
	if c.Inventory == "" {
		missing = append(missing, "inventory")
	}
	if c.Municipalities == "" {
		missing = append(missing, "municipalities")
	}
	if len(missing) > 0 {
		return domain.ErrConfiguration("missing required setting(s): %s", strings.Join(missing, ", "))
	}
	if len([]rune(c.Delimiter)) > 1 {
		return domain.ErrConfiguration("delimiter must be a single character, got %q", c.Delimiter)
	}
	if _, err := c.DepartmentCodes(); err != nil {
		return err
	}
	return nil
}

// DepartmentCodes resolves the configured departments to numeric codes.
func (c *Config) DepartmentCodes() ([]int, error) {
	return reference.ResolveDepartments(c.Departments)
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EngineOptions returns the inventory engine settings.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		Source:  c.Inventory,
		Delim:   c.Delimiter,
		Columns: c.Columns,
		Blocks:  c.BlockMode,
		Credentials: engine.Credentials{
			S3KeyID:      c.Storage.S3KeyID,
			S3Secret:     c.Storage.S3Secret,
			S3Endpoint:   c.Storage.S3Endpoint,
			S3Region:     c.Storage.S3Region,
			GCSKeyID:     c.Storage.GCSHMACKeyID,
			GCSSecret:    c.Storage.GCSHMACSecret,
			AzureAccount: c.Storage.AzureAccount,
			AzureKey:     c.Storage.AzureKey,
		},
	}
}

// PublishCredentials returns the credentials for the output publishers.
func (c *Config) PublishCredentials() publish.Credentials {
	return publish.Credentials{
		S3KeyID:      c.Storage.S3KeyID,
		S3Secret:     c.Storage.S3Secret,
		S3Endpoint:   c.Storage.S3Endpoint,
		S3Region:     c.Storage.S3Region,
		GCSKeyFile:   c.Storage.GCSKeyFile,
		AzureAccount: c.Storage.AzureAccount,
		AzureKey:     c.Storage.AzureKey,
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitTrim(v string) []string {
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
