// Package cli: config.go implements "portal-setup config", which prints
// the effective configuration after defaults are applied.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/portal-setup/internal/config"
)

type configFlags struct {
	dir        string
	configPath string
}

// NewConfigCommand creates the "config" command.
func NewConfigCommand() *cobra.Command {
	flags := &configFlags{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration portal-setup would use for the project, as YAML
(or JSON with --json). The output is a valid ` + config.FileName + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(flags.dir, flags.configPath)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), struct {
					Path   string         `json:"path"`
					Config *config.Config `json:"config"`
				}{Path: path, Config: cfg})
			}

			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
			return err
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", ".", "Project directory")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Path to "+config.FileName)
	return cmd
}
