package cli

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after file, environment and defaults are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			shown := *cfg
			redact(&shown.Storage.S3Secret)
			redact(&shown.Storage.GCSHMACSecret)
			redact(&shown.Storage.AzureKey)

			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, shown)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(shown); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}

func redact(s *string) {
	if *s != "" {
		*s = "********"
	}
}
