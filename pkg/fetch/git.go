package fetch

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// GitFetcher materializes [pkgset.GitSource] packages by cloning the
// repository and checking out the ref. The ref may name a branch, tag, or
// commit; no distinction is made, which is why a moving branch yields a
// stale cache entry until explicitly invalidated.
type GitFetcher struct {
	staging string
}

// NewGitFetcher creates a fetcher that stages clones under staging.
func NewGitFetcher(staging string) *GitFetcher {
	return &GitFetcher{staging: staging}
}

// Materialize clones the source repository into a staging directory, checks
// out the ref, and renames the result into dest. On any failure dest is
// left untouched and the underlying git stderr is preserved in the error.
func (f *GitFetcher) Materialize(ctx context.Context, src pkgset.Source, dest string) error {
	git, ok := src.(pkgset.GitSource)
	if !ok {
		return errors.New(errors.ErrCodeUnsupported, "git fetcher cannot materialize %T", src)
	}

	staged, cleanup, err := stage(f.staging)
	if err != nil {
		return err
	}
	defer cleanup()

	repoDir := filepath.Join(staged, "repo")
	if err := runGit(ctx, staged, "clone", git.RepoURL, "repo"); err != nil {
		return errors.Wrap(errors.ErrCodeVcsFailure, err, "failed to clone %s", git.RepoURL)
	}
	if err := runGit(ctx, repoDir, "-c", "advice.detachedHead=false", "checkout", git.Ref); err != nil {
		return errors.Wrap(errors.ErrCodeVcsFailure, err, "failed to checkout %q in %s", git.Ref, git.RepoURL)
	}

	return promote(repoDir, dest)
}

// runGit executes git with args in dir, surfacing stderr on failure.
func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return &gitError{args: args, stderr: string(msg), cause: err}
		}
		return err
	}
	return nil
}

// gitError carries the transport-level detail of a failed git invocation.
type gitError struct {
	args   []string
	stderr string
	cause  error
}

func (e *gitError) Error() string { return "git " + e.args[0] + ": " + e.stderr }

func (e *gitError) Unwrap() error { return e.cause }
