// Package fetch materializes resolved packages on local disk.
//
// Two strategies exist, one per source kind: [GitFetcher] clones a
// repository and checks out a ref, [ArchiveFetcher] downloads and extracts
// a tarball. Both stage into a private directory and atomically rename into
// the destination, so a destination directory either holds a complete
// package tree or does not exist - never a partial one. The [Orchestrator]
// drives a resolution through the strategies and the local store with a
// bounded worker pool.
package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// Fetcher materializes one package source into a destination directory.
// Implementations must leave dest either fully populated or absent on
// failure, and must not assume dest's parent exists.
type Fetcher interface {
	Materialize(ctx context.Context, src pkgset.Source, dest string) error
}

// stage creates a fresh private staging directory under root.
// Staging lives on the same filesystem as the destinations so the final
// rename is atomic. The returned cleanup is safe to call after a
// successful promote (it removes nothing that was renamed away).
func stage(root string) (dir string, cleanup func(), err error) {
	dir = filepath.Join(root, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInternal, err, "failed to create staging directory")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// promote moves a fully staged tree into its final destination.
// The rename only happens after the strategy succeeded in full, which is
// what keeps the store's presence check trustworthy.
func promote(staged, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to create %s", filepath.Dir(dest))
	}
	// A crash between a previous rename and the index write leaves dest
	// populated but unrecorded; the store reads that as a miss, so the slot
	// must be clobbered for the re-fetch to land.
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to clear stale destination %s", dest)
	}
	if err := os.Rename(staged, dest); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "failed to move staged package into place")
	}
	return nil
}
