package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/manifest"
)

// initCommand creates the init command.
func (c *CLI) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new vessel project in the current directory",
		Long: `Init writes a starter vessel.toml and package-set.toml into the current
directory. It refuses to overwrite files that already exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			if err := manifest.Init(cwd); err != nil {
				return err
			}

			printSuccess("Initialized a new vessel project")
			printFile(manifest.File)
			printFile(manifest.SetFile)
			printNextStep("Install your dependencies", "vessel install")
			printNextStep("Check for a newer package set", "vessel upgrade-set")
			return nil
		},
	}
}
