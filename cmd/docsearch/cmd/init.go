package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/configs"
	"github.com/custodia-labs/docsearch/internal/config"
)

func newInitCmd() *cobra.Command {
	var user bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: "Writes .docsearch.yaml into the data directory (or, with --user, a machine-level\n" +
			"config at ~/.config/docsearch/config.yaml) from the embedded template.",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			var path, template string
			if user {
				path = config.GetUserConfigPath()
				template = configs.UserConfigTemplate
			} else {
				path = filepath.Join(dataDir, ".docsearch.yaml")
				template = configs.DeploymentConfigTemplate
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "write the machine-level config instead of the deployment config")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
