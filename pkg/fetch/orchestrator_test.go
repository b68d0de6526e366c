package fetch

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/pkgset"
	"github.com/dfinity/vessel/pkg/store"
)

// fakeFetcher records materialize calls and fails for configured sources.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeFetcher) Materialize(ctx context.Context, src pkgset.Source, dest string) error {
	f.mu.Lock()
	f.calls = append(f.calls, src.Token())
	f.mu.Unlock()

	if err, ok := f.fail[src.Token()]; ok {
		return err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "lib.mo"), []byte("module {}"), 0o644)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func gitPkg(name, ref string, deps ...string) pkgset.Package {
	return pkgset.Package{
		Name: name,
		// A non-GitHub URL so the orchestrator goes straight to the git strategy.
		Source:       pkgset.GitSource{RepoURL: "https://git.example.com/" + name, Ref: ref},
		Dependencies: deps,
	}
}

func resolveAll(t *testing.T, packages ...pkgset.Package) *pkgset.Resolution {
	t.Helper()
	set, err := pkgset.New(packages)
	require.NoError(t, err)

	roots := make([]string, len(packages))
	for i, p := range packages {
		roots[i] = p.Name
	}
	res, err := pkgset.Resolve(set, roots)
	require.NoError(t, err)
	return res
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *fakeFetcher) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	fake := &fakeFetcher{fail: map[string]error{}}
	o := NewOrchestrator(st, nil).WithFetchers(fake, fake).WithWorkers(4)
	return o, st, fake
}

func TestFetchAll(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	res := resolveAll(t, gitPkg("base", "v1"), gitPkg("matchers", "v2", "base"))

	got, err := o.FetchAll(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, fake.callCount())

	// Results follow resolution order regardless of fetch completion order.
	assert.Equal(t, "base", got[0].Name)
	assert.Equal(t, "matchers", got[1].Name)

	for _, m := range got {
		if _, statErr := os.Stat(m.Dir); statErr != nil {
			t.Errorf("materialized dir missing for %s: %v", m.Name, statErr)
		}
	}

	// Entries were recorded.
	_, ok := st.Lookup("base", "v1")
	assert.True(t, ok)
}

func TestFetchAllIdempotent(t *testing.T) {
	o, _, fake := newTestOrchestrator(t)
	res := resolveAll(t, gitPkg("base", "v1"), gitPkg("matchers", "v2", "base"))

	first, err := o.FetchAll(context.Background(), res)
	require.NoError(t, err)
	require.Equal(t, 2, fake.callCount())

	// Second run is served entirely from cache.
	second, err := o.FetchAll(context.Background(), res)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount(), "second FetchAll must perform zero fetches")
	assert.Equal(t, first, second, "cached run must return identical paths")
}

func TestFetchAllAfterInvalidate(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	res := resolveAll(t, gitPkg("base", "v1"), gitPkg("matchers", "v2", "base"))

	_, err := o.FetchAll(context.Background(), res)
	require.NoError(t, err)
	require.NoError(t, st.Invalidate("base"))

	_, err = o.FetchAll(context.Background(), res)
	require.NoError(t, err)

	// Exactly one re-fetch: the invalidated package.
	assert.Equal(t, 3, fake.callCount())
}

func TestFetchAllChangedTokenRefetches(t *testing.T) {
	o, _, fake := newTestOrchestrator(t)

	_, err := o.FetchAll(context.Background(), resolveAll(t, gitPkg("base", "v1")))
	require.NoError(t, err)

	// Bumping the ref changes the identity token, so the old entry is stale.
	_, err = o.FetchAll(context.Background(), resolveAll(t, gitPkg("base", "v2")))
	require.NoError(t, err)
	assert.Equal(t, 2, fake.callCount())
}

func TestFetchAllAggregatesFailures(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	fake.fail["bad1"] = errors.New(errors.ErrCodeVcsFailure, "no such ref")
	fake.fail["bad2"] = errors.New(errors.ErrCodeVcsFailure, "repository not found")

	res := resolveAll(t,
		gitPkg("alpha", "ok1"),
		gitPkg("broken-a", "bad1"),
		gitPkg("broken-b", "bad2"),
		gitPkg("omega", "ok2"),
	)

	got, err := o.FetchAll(context.Background(), res)

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures, 2, "every failure must be reported")
	assert.Equal(t, "broken-a", agg.Failures[0].Name)
	assert.Equal(t, "broken-b", agg.Failures[1].Name)

	// Successful siblings are still materialized and inspectable.
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "omega", got[1].Name)

	// Failed packages leave no cache entry.
	_, ok := st.Lookup("broken-a", "bad1")
	assert.False(t, ok)
}

func TestFetchAllFailureLeavesNoArtifact(t *testing.T) {
	o, st, fake := newTestOrchestrator(t)
	fake.fail["bad"] = errors.New(errors.ErrCodeDownloadFailure, "connection reset")

	res := resolveAll(t, gitPkg("broken", "bad"))
	_, err := o.FetchAll(context.Background(), res)
	require.Error(t, err)

	if _, statErr := os.Stat(st.EntryDir("broken", "bad")); !os.IsNotExist(statErr) {
		t.Error("failed fetch must leave no on-disk artifact")
	}

	// A later run can retry cleanly.
	delete(fake.fail, "bad")
	got, err := o.FetchAll(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFetchAllRecoversUnrecordedEntry(t *testing.T) {
	body := tarGz(t, map[string]string{
		"pkg-1.0/":         "",
		"pkg-1.0/src/":     "",
		"pkg-1.0/src/A.mo": "module {}",
	})
	srv := serveBytes(t, body, http.StatusOK)

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)

	// Simulate a crash between the rename and the index write: the entry
	// directory is populated but the index has no row, so Lookup misses.
	src := pkgset.ArchiveSource{URL: srv.URL + "/pkg.tar.gz"}
	stale := st.EntryDir("pkg", src.Token())
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "leftover"), []byte("x"), 0o644))

	res := resolveAll(t, pkgset.Package{Name: "pkg", Source: src})
	got, err := NewOrchestrator(st, nil).FetchAll(context.Background(), res)
	require.NoError(t, err, "re-fetch into an unrecorded slot must succeed")
	require.Len(t, got, 1)

	if _, statErr := os.Stat(filepath.Join(got[0].Dir, "src", "A.mo")); statErr != nil {
		t.Errorf("re-fetched content missing: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(got[0].Dir, "leftover")); !os.IsNotExist(statErr) {
		t.Error("stale slot content must be replaced, not merged")
	}

	_, ok := st.Lookup("pkg", src.Token())
	assert.True(t, ok, "recovered entry must be recorded")
}

func TestFetchAllCancelled(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.FetchAll(ctx, resolveAll(t, gitPkg("base", "v1")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGithubTarballURL(t *testing.T) {
	tests := []struct {
		name string
		src  pkgset.GitSource
		want string
		ok   bool
	}{
		{
			name: "github https",
			src:  pkgset.GitSource{RepoURL: "https://github.com/dfinity/motoko-base", Ref: "moc-0.8.7"},
			want: "https://github.com/dfinity/motoko-base/archive/moc-0.8.7/.tar.gz",
			ok:   true,
		},
		{
			name: "github with .git suffix",
			src:  pkgset.GitSource{RepoURL: "https://github.com/kritzcreek/motoko-matchers.git", Ref: "v1.2.0"},
			want: "https://github.com/kritzcreek/motoko-matchers/archive/v1.2.0/.tar.gz",
			ok:   true,
		},
		{
			name: "non-github host",
			src:  pkgset.GitSource{RepoURL: "https://gitlab.com/x/y", Ref: "main"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := githubTarballURL(tt.src)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("url = %q, want %q", got, tt.want)
			}
		})
	}
}
