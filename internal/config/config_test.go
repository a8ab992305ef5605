package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"census-typology/internal/domain"
)

// clearEnv blanks every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TYPOLOGY_MAPPING", "TYPOLOGY_INVENTORY", "TYPOLOGY_MUNICIPALITIES", "TYPOLOGY_DELIMITER",
		"TYPOLOGY_OUTPUT_DIR", "TYPOLOGY_PUBLISH_URL", "TYPOLOGY_LEDGER_PATH", "LOG_LEVEL",
		"TYPOLOGY_SCHEDULE", "TYPOLOGY_DEPARTMENTS", "TYPOLOGY_EXCLUDE", "TYPOLOGY_WORKERS",
		"TYPOLOGY_BLOCK_MODE", "TYPOLOGY_FAIL_FAST", "TYPOLOGY_STOREYS", "TYPOLOGY_DOMINANT",
		"KEY_ID", "SECRET", "ENDPOINT", "REGION", "GCS_KEY_FILE", "GCS_HMAC_KEY_ID",
		"GCS_HMAC_SECRET", "AZURE_STORAGE_ACCOUNT", "AZURE_STORAGE_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, "typology_runs.sqlite", cfg.LedgerPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.BlockMode)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
mapping: mapping.xlsx
inventory: s3://census/inventory.parquet
municipalities: municipios.csv
sheets:
  locales: locales
columns:
  municipality: COD_MPIO
delimiter: ";"
departments: ["05", "Atlantico"]
exclude: [5001]
block_mode: true
workers: 4
storeys: true
storage:
  s3_key_id: AKIA
  s3_secret: shh
  s3_endpoint: minio.local:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mapping.xlsx", cfg.Mapping)
	assert.Equal(t, "locales", cfg.Sheets.Locales)
	assert.Equal(t, "COD_MPIO", cfg.Columns.Municipality)
	assert.Equal(t, []int{5001}, cfg.Exclude)
	assert.True(t, cfg.BlockMode)
	assert.True(t, cfg.Storeys)
	assert.Equal(t, 4, cfg.Workers)

	codes, err := cfg.DepartmentCodes()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 8}, codes)

	opts := cfg.EngineOptions()
	assert.Equal(t, "s3://census/inventory.parquet", opts.Source)
	assert.Equal(t, ";", opts.Delim)
	assert.True(t, opts.Blocks)
	assert.Equal(t, "AKIA", opts.Credentials.S3KeyID)
	assert.Equal(t, "minio.local:9000", cfg.PublishCredentials().S3Endpoint)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "mapping: a.xlsx\nworkers: 2\nfail_fast: false\n")
	t.Setenv("TYPOLOGY_MAPPING", "b.xlsx")
	t.Setenv("TYPOLOGY_WORKERS", "8")
	t.Setenv("TYPOLOGY_FAIL_FAST", "yes")
	t.Setenv("TYPOLOGY_DEPARTMENTS", "05, 08,")
	t.Setenv("TYPOLOGY_EXCLUDE", "5001,8001")
	t.Setenv("KEY_ID", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "b.xlsx", cfg.Mapping)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, []string{"05", "08"}, cfg.Departments)
	assert.Equal(t, []int{5001, 8001}, cfg.Exclude)
	assert.Equal(t, "env-key", cfg.Storage.S3KeyID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		body string
	}{
		{name: "bad_yaml", body: "mapping: [unclosed"},
		{name: "bad_workers", env: map[string]string{"TYPOLOGY_WORKERS": "many"}},
		{name: "bad_exclude", env: map[string]string{"TYPOLOGY_EXCLUDE": "5001,x"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.body != "" {
				path = writeConfig(t, tc.body)
			}
			_, err := Load(path)
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Mapping: "m.xlsx", Inventory: "i.csv", Municipalities: "mun.csv"}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "missing_inputs", mutate: func(c *Config) { c.Mapping, c.Inventory = "", "" }, wantErr: "mapping, inventory"},
		{name: "delimiter", mutate: func(c *Config) { c.Delimiter = ";;" }, wantErr: "single character"},
		{name: "unknown_department", mutate: func(c *Config) { c.Departments = []string{"Atlantis"} }, wantErr: "Atlantis"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tc.level}
			assert.Equal(t, tc.want, cfg.SlogLevel().String())
		})
	}
}

func TestParseBoolEnvDefault(t *testing.T) {
	t.Setenv("TEST_BOOL", "off")
	assert.False(t, parseBoolEnvDefault("TEST_BOOL", true))
	t.Setenv("TEST_BOOL", "ON")
	assert.True(t, parseBoolEnvDefault("TEST_BOOL", false))
	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, parseBoolEnvDefault("TEST_BOOL", true))
}
