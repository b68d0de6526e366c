package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/fetch"
	"github.com/dfinity/vessel/pkg/flags"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// sourcesCommand creates the sources command.
func (c *CLI) sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Print the compiler package flags for the installed dependencies",
		Long: `Sources installs the project's dependencies and prints the package flags
for the Motoko compiler to stdout, in dependency order:

    --package <name> <path> --package <name> <path> ...

Everything else is logged to stderr, so the output can be substituted
directly into a compiler invocation:

    moc $(vessel sources) -o main.wasm main.mo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			materialized, res, err := c.runInstall(cmd.Context(), p, false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), flags.Format(packageFlags(res, materialized)))
			return nil
		},
	}
}

// packageFlags rebases materialized paths onto their source directories and
// emits compiler flags, preserving dependency order. Paths are made
// relative to the invocation directory when possible, so the output stays
// readable and stable across checkouts.
func packageFlags(res *pkgset.Resolution, materialized []fetch.Materialized) []flags.Flag {
	cwd, err := os.Getwd()
	rebased := make([]fetch.Materialized, len(materialized))
	for i, m := range materialized {
		dir := sourcePath(m.Dir)
		if err == nil {
			if rel, relErr := filepath.Rel(cwd, dir); relErr == nil {
				dir = rel
			}
		}
		rebased[i] = fetch.Materialized{Name: m.Name, Dir: dir}
	}
	return flags.Emit(res, rebased)
}
