package fetch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dfinity/vessel/pkg/pkgset"
	"github.com/dfinity/vessel/pkg/store"
)

// DefaultWorkers bounds the number of concurrent fetches so a large
// resolution does not overwhelm the network or filesystem.
const DefaultWorkers = 8

// Materialized is a resolved package placed on local disk.
type Materialized struct {
	Name string
	Dir  string
}

// Failure pairs a package name with the error that prevented its fetch.
type Failure struct {
	Name string
	Err  error
}

// AggregateError reports every per-package fetch failure from one FetchAll
// run. Sibling fetches are never aborted by one failure, so all broken
// packages can be diagnosed in a single pass.
type AggregateError struct {
	Failures []Failure
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Name
	}
	return fmt.Sprintf("failed to fetch %d package(s): %s", len(e.Failures), strings.Join(names, ", "))
}

// Orchestrator drives a resolution through the local store and the fetch
// strategies.
type Orchestrator struct {
	store   *store.Store
	git     Fetcher
	archive Fetcher
	workers int
	logger  *log.Logger
}

// NewOrchestrator creates an orchestrator fetching into st with the default
// strategies and worker bound. Pass nil for logger to use log.Default().
func NewOrchestrator(st *store.Store, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	staging := st.StagingRoot()
	return &Orchestrator{
		store:   st,
		git:     NewGitFetcher(staging),
		archive: NewArchiveFetcher(staging, nil),
		workers: DefaultWorkers,
		logger:  logger,
	}
}

// WithFetchers replaces the fetch strategies, for tests or alternative
// transports.
func (o *Orchestrator) WithFetchers(git, archive Fetcher) *Orchestrator {
	o.git, o.archive = git, archive
	return o
}

// WithWorkers sets the concurrency bound. Values below 1 are ignored.
func (o *Orchestrator) WithWorkers(n int) *Orchestrator {
	if n >= 1 {
		o.workers = n
	}
	return o
}

// FetchAll materializes every package in the resolution, consulting the
// store first and fetching misses concurrently. Fetch order is unrelated to
// resolution order; only flag emission is order-sensitive.
//
// Failures are collected, not fatal-on-first: the returned slice holds
// every package that succeeded (cache hits included) in resolution order,
// and the error, if any, is an *AggregateError naming each package that
// failed. Re-invoking FetchAll after fixing the environment is safe because
// no partial destination is ever recorded.
func (o *Orchestrator) FetchAll(ctx context.Context, res *pkgset.Resolution) ([]Materialized, error) {
	packages := res.Packages()
	results := make([]*Materialized, len(packages))

	var mu sync.Mutex
	var failures []Failure

	g := &errgroup.Group{}
	g.SetLimit(o.workers)

	for i, pkg := range packages {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			token := pkg.Source.Token()
			if dir, ok := o.store.Lookup(pkg.Name, token); ok {
				o.logger.Debug("cache hit", "package", pkg.Name, "token", token)
				results[i] = &Materialized{Name: pkg.Name, Dir: dir}
				return nil
			}

			dest := o.store.EntryDir(pkg.Name, token)
			if err := o.materialize(ctx, pkg, dest); err != nil {
				o.logger.Error("fetch failed", "package", pkg.Name, "err", err)
				mu.Lock()
				failures = append(failures, Failure{Name: pkg.Name, Err: err})
				mu.Unlock()
				return nil
			}
			if err := o.store.Record(pkg.Name, token, dest); err != nil {
				mu.Lock()
				failures = append(failures, Failure{Name: pkg.Name, Err: err})
				mu.Unlock()
				return nil
			}

			o.logger.Info("fetched", "package", pkg.Name, "token", token)
			results[i] = &Materialized{Name: pkg.Name, Dir: dest}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	materialized := make([]Materialized, 0, len(results))
	for _, r := range results {
		if r != nil {
			materialized = append(materialized, *r)
		}
	}
	if len(failures) > 0 {
		sort.Slice(failures, func(a, b int) bool { return failures[a].Name < failures[b].Name })
		return materialized, &AggregateError{Failures: failures}
	}
	return materialized, nil
}

// materialize dispatches a package to the strategy matching its source.
// GitHub-hosted git sources try the release tarball first and fall back to
// a clone, since the tarball avoids pulling repository history.
func (o *Orchestrator) materialize(ctx context.Context, pkg *pkgset.Package, dest string) error {
	switch src := pkg.Source.(type) {
	case pkgset.GitSource:
		if url, ok := githubTarballURL(src); ok {
			o.logger.Debug("downloading tarball", "package", pkg.Name, "url", url)
			if err := o.archive.Materialize(ctx, pkgset.ArchiveSource{URL: url}, dest); err == nil {
				return nil
			} else if ctx.Err() != nil {
				return err
			}
			o.logger.Warn("tarball download failed, cloning instead", "package", pkg.Name)
		}
		return o.git.Materialize(ctx, src, dest)
	case pkgset.ArchiveSource:
		return o.archive.Materialize(ctx, src, dest)
	default:
		return fmt.Errorf("unknown source kind %T for %q", src, pkg.Name)
	}
}

// githubTarballURL builds the release tarball URL for GitHub-hosted repos.
func githubTarballURL(src pkgset.GitSource) (string, bool) {
	if !strings.HasPrefix(src.RepoURL, "https://github.com/") {
		return "", false
	}
	repo := strings.TrimSuffix(src.RepoURL, ".git")
	return fmt.Sprintf("%s/archive/%s/.tar.gz", repo, src.Ref), true
}
