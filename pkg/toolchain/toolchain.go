// Package toolchain downloads the Motoko compiler release pinned by the
// project manifest into the local store's bin area.
package toolchain

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/mod/semver"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/fetch"
	"github.com/dfinity/vessel/pkg/pkgset"
	"github.com/dfinity/vessel/pkg/store"
)

// Releases newer than this cutoff are published on GitHub; older ones live
// on the legacy download host.
const legacyCutoff = "v0.6.2"

// Downloader fetches compiler release tarballs into a store's bin area,
// one directory per version, with the same staging discipline packages use.
type Downloader struct {
	store      *store.Store
	client     *http.Client
	githubBase string
	legacyBase string
}

// NewDownloader creates a Downloader backed by st. Pass nil for client to
// use a default HTTP client.
func NewDownloader(st *store.Store, client *http.Client) *Downloader {
	return &Downloader{
		store:      st,
		client:     client,
		githubBase: "https://github.com/dfinity/motoko/releases/download",
		legacyBase: "https://download.dfinity.systems/motoko",
	}
}

// Download ensures the compiler release for version is present and returns
// the directory holding its binaries. A version already on disk is returned
// as is.
func (d *Downloader) Download(ctx context.Context, version string) (string, error) {
	if !pkgset.ValidVersion(version) {
		return "", errors.New(errors.ErrCodeInvalidVersion, "invalid compiler version %q", version)
	}

	dest := filepath.Join(d.store.BinDir(), version)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	url, err := d.releaseURL(version)
	if err != nil {
		return "", err
	}

	fetcher := fetch.NewArchiveFetcher(d.store.StagingRoot(), d.client)
	if err := fetcher.Materialize(ctx, pkgset.ArchiveSource{URL: url}, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// releaseURL picks the tarball location for this platform and version.
func (d *Downloader) releaseURL(version string) (string, error) {
	var gitHubOS, legacyOS string
	switch runtime.GOOS {
	case "linux":
		gitHubOS, legacyOS = "linux64", "x86_64-linux"
	case "darwin":
		gitHubOS, legacyOS = "macos", "x86_64-darwin"
	default:
		return "", errors.New(errors.ErrCodeUnsupported,
			"installing the compiler is only supported on Linux or macOS for now")
	}

	if semver.Compare("v"+version, legacyCutoff) > 0 {
		return fmt.Sprintf("%s/%s/motoko-%s-%s.tar.gz", d.githubBase, version, gitHubOS, version), nil
	}
	return fmt.Sprintf("%s/%s/%s/motoko-%s.tar.gz", d.legacyBase, version, legacyOS, version), nil
}

// Moc returns the path of the moc binary inside a downloaded release.
func Moc(dir string) string {
	return filepath.Join(dir, "moc")
}
