package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/manifest"
	"github.com/dfinity/vessel/pkg/toolchain"
)

// binCommand creates the bin command.
func (c *CLI) binCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bin",
		Short: "Download the pinned compiler and print its directory",
		Long: `Bin downloads the Motoko compiler release pinned by the 'compiler' field
in vessel.toml into .vessel/.bin/<version> and prints that directory to
stdout. Subsequent runs reuse the downloaded release.

Typical usage:

    $(vessel bin)/moc $(vessel sources) -o main.wasm main.mo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			if p.manifest.Compiler == "" {
				return errors.New(errors.ErrCodeInvalidManifest,
					"no compiler version specified, set the 'compiler' field in %s", manifest.File)
			}

			dir, err := c.compilerDir(cmd, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

// compilerDir ensures the pinned compiler release is downloaded and returns
// its directory.
func (c *CLI) compilerDir(cmd *cobra.Command, p *project) (string, error) {
	version := p.manifest.Compiler
	c.Logger.Debug("ensuring compiler", "version", version)

	spinner := newSpinnerWithContext(cmd.Context(), fmt.Sprintf("Downloading compiler %s...", version))
	spinner.Start()

	dir, err := toolchain.NewDownloader(p.store, nil).Download(cmd.Context(), version)
	if err != nil {
		spinner.StopWithError("Compiler download failed")
		return "", err
	}
	spinner.Stop()
	return dir, nil
}
