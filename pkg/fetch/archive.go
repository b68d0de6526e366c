package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// ArchiveFetcher materializes [pkgset.ArchiveSource] packages by downloading
// a gzipped tarball and extracting it. Download and extraction failures are
// reported with distinct codes: the former is typically transient, the
// latter means the artifact itself is corrupt.
type ArchiveFetcher struct {
	staging string
	client  *http.Client
}

// NewArchiveFetcher creates a fetcher that stages downloads under staging.
// Pass nil to use a default HTTP client with a 5 minute timeout.
func NewArchiveFetcher(staging string, client *http.Client) *ArchiveFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &ArchiveFetcher{staging: staging, client: client}
}

// Materialize downloads the source URL, extracts it into a staging
// directory, and renames the result into dest. When the archive holds a
// single top-level directory (the GitHub tarball layout) that directory
// becomes dest; otherwise the extraction root does.
func (f *ArchiveFetcher) Materialize(ctx context.Context, src pkgset.Source, dest string) error {
	archive, ok := src.(pkgset.ArchiveSource)
	if !ok {
		return errors.New(errors.ErrCodeUnsupported, "archive fetcher cannot materialize %T", src)
	}

	staged, cleanup, err := stage(f.staging)
	if err != nil {
		return err
	}
	defer cleanup()

	tarball := filepath.Join(staged, "download.tar.gz")
	if err := f.download(ctx, archive.URL, tarball); err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailure, err, "failed to download %s", archive.URL)
	}

	unpacked := filepath.Join(staged, "unpacked")
	if err := extractTarGz(tarball, unpacked); err != nil {
		return errors.Wrap(errors.ErrCodeExtractFailure, err, "failed to extract %s", archive.URL)
	}

	root, err := contentRoot(unpacked)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExtractFailure, err, "unusable archive from %s", archive.URL)
	}
	return promote(root, dest)
}

// download streams url into path.
func (f *ArchiveFetcher) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "vessel")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractTarGz unpacks a gzipped tarball into dir, rejecting entries that
// would escape it.
func extractTarGz(tarball, dir string) error {
	file, err := os.Open(tarball)
	if err != nil {
		return err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := filepath.Clean(hdr.Name)
		if name == "." || name == ".." {
			continue
		}
		if strings.HasPrefix(name, ".."+string(filepath.Separator)) || filepath.IsAbs(name) {
			return fmt.Errorf("archive entry escapes extraction directory: %s", hdr.Name)
		}

		target := filepath.Join(dir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o755)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

// contentRoot decides which directory holds the package content: a tarball
// with exactly one top-level directory (GitHub archive layout) contributes
// that directory, anything else contributes the extraction root itself.
// An empty archive is an error.
func contentRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("archive is empty")
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
