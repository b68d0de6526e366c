// Package cli implements the vessel command-line interface.
//
// Commands resolve the project manifest against the package set, fetch the
// resulting closure into the project-local cache, and emit the package
// flags the Motoko compiler tools consume. Flag output goes to stdout;
// everything else (logs, progress, status) goes to stderr so the output of
// 'vessel sources' can be spliced into a compiler invocation.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dfinity/vessel/pkg/buildinfo"
	"github.com/dfinity/vessel/pkg/cache"
	"github.com/dfinity/vessel/pkg/manifest"
	"github.com/dfinity/vessel/pkg/pkgset"
	"github.com/dfinity/vessel/pkg/store"
)

const (
	// appName is the application name used for directories and display.
	appName = "vessel"

	// storeDirname is the project-local cache directory.
	storeDirname = ".vessel"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger writing to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Vessel is a package manager for the Motoko programming language",
		Long:         `Vessel resolves your project's dependencies against a shared package set, fetches and caches their sources, and prints the package flags the Motoko compiler needs.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.initCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.sourcesCommand())
	root.AddCommand(c.binCommand())
	root.AddCommand(c.verifyCommand())
	root.AddCommand(c.upgradeSetCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// project bundles everything a command needs to operate on the surrounding
// vessel project.
type project struct {
	dir      string
	manifest *manifest.Manifest
	set      pkgset.Set
	store    *store.Store
}

// openProject locates the project root from the working directory and loads
// its manifest, package set, and cache.
func (c *CLI) openProject() (*project, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	dir, err := manifest.Discover(cwd)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("found project", "dir", dir)

	m, err := manifest.Load(filepath.Join(dir, manifest.File))
	if err != nil {
		return nil, err
	}
	set, err := manifest.LoadSet(filepath.Join(dir, manifest.SetFile))
	if err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(dir, storeDirname))
	if err != nil {
		return nil, err
	}
	return &project{dir: dir, manifest: m, set: set, store: st}, nil
}

// resolve computes the dependency closure of the manifest roots.
func (p *project) resolve() (*pkgset.Resolution, error) {
	return pkgset.Resolve(p.set, p.manifest.Dependencies)
}

// sourcePath points the compiler at a package's source directory. By
// convention Motoko packages keep sources under src/; packages without one
// are used from their root.
func sourcePath(dir string) string {
	src := filepath.Join(dir, "src")
	if info, err := os.Stat(src); err == nil && info.IsDir() {
		return src
	}
	return dir
}

// httpCacheDir returns the response cache directory using the XDG standard
// (~/.cache/vessel/). This cache holds GitHub API responses, not packages.
func httpCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// newHTTPCache opens the response cache, degrading to a no-op cache when
// the directory is unavailable.
func newHTTPCache() cache.Cache {
	dir, err := httpCacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}
