package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"census-typology/internal/config"
)

// inputFlags override the input settings of the configuration.
type inputFlags struct {
	mapping        string
	inventory      string
	municipalities string
	delimiter      string
	departments    []string
	exclude        []int
	blockMode      bool
	workers        int
}

func (f *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.mapping, "mapping", "", "Classification workbook (.xlsx)")
	fs.StringVar(&f.inventory, "inventory", "", "Building inventory (csv or parquet; local path or s3://, gs://, az://, https:// URL)")
	fs.StringVar(&f.municipalities, "municipalities", "", "Municipality reference list (latin-1 csv)")
	fs.StringVar(&f.delimiter, "delimiter", "", "Inventory CSV delimiter (auto-detected when empty)")
	fs.StringSliceVar(&f.departments, "departments", nil, "Departments to process, by code or name (default all)")
	fs.IntSliceVar(&f.exclude, "exclude", nil, "Municipality codes to skip")
	fs.BoolVar(&f.blockMode, "block-mode", false, "Distribute per census block instead of per municipality")
	fs.IntVar(&f.workers, "workers", 0, "Municipalities processed in parallel")
}

// apply copies the flags the user set onto cfg.
func (f *inputFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("mapping") {
		cfg.Mapping = f.mapping
	}
	if fs.Changed("inventory") {
		cfg.Inventory = f.inventory
	}
	if fs.Changed("municipalities") {
		cfg.Municipalities = f.municipalities
	}
	if fs.Changed("delimiter") {
		cfg.Delimiter = f.delimiter
	}
	if fs.Changed("departments") {
		cfg.Departments = f.departments
	}
	if fs.Changed("exclude") {
		cfg.Exclude = f.exclude
	}
	if fs.Changed("block-mode") {
		cfg.BlockMode = f.blockMode
	}
	if fs.Changed("workers") && f.workers > 0 {
		cfg.Workers = f.workers
	}
}
