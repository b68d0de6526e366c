package cli

import (
	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/integrations/github"
)

// upgradeSetCommand creates the upgrade-set command.
func (c *CLI) upgradeSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade-set [tag]",
		Short: "Look up the latest upstream package-set release",
		Long: `Upgrade-set queries the GitHub releases of ` + github.SetOwner + `/` + github.SetRepo + ` for the
latest (or the given tagged) package-set release and prints its download
URL and content hash. Use them to update your package-set.toml.

API responses are cached for an hour; the release asset itself is fetched
fresh so the printed hash always matches the published catalog.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := ""
			if len(args) == 1 {
				tag = args[0]
			}

			httpCache := newHTTPCache()
			defer httpCache.Close()

			spinner := newSpinnerWithContext(cmd.Context(), "Fetching the latest package set...")
			spinner.Start()
			release, err := github.NewClient("", httpCache).PackageSet(cmd.Context(), tag)
			if err != nil {
				spinner.StopWithError("Could not fetch the package set release")
				return err
			}
			spinner.Stop()

			printSuccess("Found package-set release %s", release.Tag)
			printDetail("url:  %s", release.URL)
			printDetail("hash: %s", release.Hash)
			printNextStep("Update the release reference in", "package-set.toml")
			return nil
		},
	}
}
