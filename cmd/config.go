// File: cmd/config.go
package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(opts.cfg.Redacted()); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return configCmd
}
