package cli

import (
	"bytes"
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/fetch"
	"github.com/dfinity/vessel/pkg/flags"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// verifyCommand creates the verify command.
func (c *CLI) verifyCommand() *cobra.Command {
	var (
		moc     string
		mocArgs string
	)

	cmd := &cobra.Command{
		Use:   "verify [package]",
		Short: "Compile-check packages against the package set",
		Long: `Verify runs 'moc --check' over a package's sources with the package flags
of its transitive dependencies. Without an argument, every package in the
set is verified in dependency order; packages whose dependencies already
failed are skipped.

The compiler is taken from the pinned 'compiler' version when one is set,
from --moc otherwise.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject()
			if err != nil {
				return err
			}

			mocPath := moc
			if p.manifest.Compiler != "" {
				dir, err := c.compilerDir(cmd, p)
				if err != nil {
					return err
				}
				mocPath = filepath.Join(dir, "moc")
			}

			extra := strings.Fields(mocArgs)
			if len(args) == 1 {
				return c.verifyPackage(cmd.Context(), p, mocPath, extra, args[0])
			}
			return c.verifyAll(cmd.Context(), p, mocPath, extra)
		},
	}

	cmd.Flags().StringVar(&moc, "moc", "moc", "path to the moc compiler binary")
	cmd.Flags().StringVar(&mocArgs, "moc-args", "", "extra arguments passed through to moc")

	return cmd
}

// verifyPackage checks that every source file of one package compiles with
// its transitive dependencies on the package path.
func (c *CLI) verifyPackage(ctx context.Context, p *project, moc string, mocArgs []string, name string) error {
	res, err := pkgset.Resolve(p.set, []string{name})
	if err != nil {
		return err
	}

	materialized, err := fetch.NewOrchestrator(p.store, c.Logger).FetchAll(ctx, res)
	if err != nil {
		reportFetchFailures(err)
		return err
	}

	var pkgDir string
	deps := make([]fetch.Materialized, 0, len(materialized))
	for _, m := range materialized {
		if m.Name == name {
			pkgDir = m.Dir
			continue
		}
		deps = append(deps, m)
	}

	sources, err := motokoSources(sourcePath(pkgDir))
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		printWarning("Package %q has no Motoko sources", name)
		return nil
	}

	args := append([]string{"--check"}, mocArgs...)
	args = append(args, flags.Args(packageFlags(res, deps))...)
	args = append(args, sources...)

	cmd := exec.CommandContext(ctx, moc, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		printError("Failed to verify %q", name)
		printDetail("%s", strings.TrimSpace(stderr.String()))
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to verify %q", name)
	}

	printInfo("Verified %q", name)
	if warnings := strings.TrimSpace(stderr.String()); warnings != "" {
		printDetail("%s", warnings)
	}
	return nil
}

// verifyAll checks every package in the set in dependency order. A package
// is skipped when one of its dependencies already failed, since its own
// result would only repeat that failure.
func (c *CLI) verifyAll(ctx context.Context, p *project, moc string, mocArgs []string) error {
	res, err := pkgset.Resolve(p.set, p.set.Names())
	if err != nil {
		return err
	}

	// blocked covers failed packages and everything downstream of them,
	// so one broken package is reported once, not once per dependent.
	blocked := make(map[string]bool)
	var failures []string
	for _, pkg := range res.Packages() {
		name := pkg.Name
		if dependencyBlocked(pkg, blocked) {
			printWarning("Skipped %q, a dependency failed to verify", name)
			blocked[name] = true
			continue
		}
		if err := c.verifyPackage(ctx, p, moc, mocArgs, name); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			blocked[name] = true
			failures = append(failures, name)
		}
	}

	if len(failures) == 0 {
		printSuccess("Verified %d packages", res.Len())
		return nil
	}
	return errors.New(errors.ErrCodeInternal, "failed to verify: %s", strings.Join(failures, ", "))
}

func dependencyBlocked(pkg *pkgset.Package, blocked map[string]bool) bool {
	for _, dep := range pkg.Dependencies {
		if blocked[dep] {
			return true
		}
	}
	return false
}

// motokoSources lists every .mo file under dir.
func motokoSources(dir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".mo" {
			sources = append(sources, path)
		}
		return nil
	})
	return sources, err
}
