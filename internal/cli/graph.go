package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/render"
)

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the project's dependency graph",
		Long: `Graph resolves the project's dependency closure and renders it as a
Graphviz diagram. Nothing is fetched; only the manifest and package set
are consulted.

With --format dot the raw DOT text is produced; with --format svg the
graph is rendered to SVG. Output goes to stdout unless -o is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			res, err := p.resolve()
			if err != nil {
				return err
			}

			dot := render.ToDOT(res, render.Options{Detailed: detailed})

			var data []byte
			switch format {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = render.RenderSVG(cmd.Context(), dot)
				if err != nil {
					return err
				}
			default:
				return errors.New(errors.ErrCodeUnsupported, "unknown format %q, expected dot or svg", format)
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Rendered %d packages", res.Len())
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot (default), svg")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include source locations in node labels")

	return cmd
}
