package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/fetch"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the project's dependencies into the local cache",
		Long: `Install resolves the dependencies declared in vessel.toml against the
package set and fetches every package in the closure into .vessel/.

Already-cached packages are not fetched again. Use --force to discard the
cached copies and fetch fresh ones, for example after a branch you depend
on has moved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}
			_, _, err = c.runInstall(cmd.Context(), p, force)
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-fetch packages even if cached")

	return cmd
}

// runInstall resolves and fetches the project's dependency closure. It is
// shared by install, sources, and verify.
func (c *CLI) runInstall(ctx context.Context, p *project, force bool) ([]fetch.Materialized, *pkgset.Resolution, error) {
	res, err := p.resolve()
	if err != nil {
		return nil, nil, err
	}
	c.Logger.Info("resolved dependencies", "packages", res.Len())

	if force {
		for _, name := range res.Order() {
			if err := p.store.Invalidate(name); err != nil {
				return nil, nil, err
			}
		}
		c.Logger.Debug("invalidated cached packages", "count", res.Len())
	}

	tracker := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Installing %d packages...", res.Len()))
	spinner.Start()

	orchestrator := fetch.NewOrchestrator(p.store, c.Logger)
	materialized, err := orchestrator.FetchAll(ctx, res)
	if err != nil {
		spinner.StopWithError("Installation failed")
		reportFetchFailures(err)
		return materialized, res, err
	}
	spinner.Stop()

	tracker.done(fmt.Sprintf("Installed %d packages", len(materialized)))
	return materialized, res, nil
}

// reportFetchFailures prints each per-package failure from an aggregate
// fetch error.
func reportFetchFailures(err error) {
	var agg *fetch.AggregateError
	if !errors.As(err, &agg) {
		return
	}
	for _, f := range agg.Failures {
		printDetail("%s: %v", f.Name, f.Err)
	}
}
