package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommand(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	if root.Use != "vessel" {
		t.Errorf("Use = %q, want vessel", root.Use)
	}

	want := []string{"init", "install", "sources", "bin", "verify", "upgrade-set", "graph", "cache"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestHTTPCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := httpCacheDir()
	if err != nil {
		t.Fatalf("httpCacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	if !strings.HasPrefix(dir, home) {
		t.Errorf("httpCacheDir() = %q, should be under home %q", dir, home)
	}
	if !strings.HasSuffix(dir, "vessel") {
		t.Errorf("httpCacheDir() = %q, should end with 'vessel'", dir)
	}
}

func TestHTTPCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")

	dir, err := httpCacheDir()
	if err != nil {
		t.Fatalf("httpCacheDir() error: %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "vessel") {
		t.Errorf("httpCacheDir() = %q, want /tmp/xdg/vessel", dir)
	}
}

func TestSourcePath(t *testing.T) {
	dir := t.TempDir()
	if got := sourcePath(dir); got != dir {
		t.Errorf("sourcePath without src = %q, want %q", got, dir)
	}

	src := filepath.Join(dir, "src")
	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := sourcePath(dir); got != src {
		t.Errorf("sourcePath with src = %q, want %q", got, src)
	}
}

func TestOpenProjectFromNestedDir(t *testing.T) {
	root := t.TempDir()
	writeProjectFiles(t, root, "")
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	c := New(io.Discard, log.InfoLevel)
	p, err := c.openProject()
	if err != nil {
		t.Fatalf("openProject() error: %v", err)
	}

	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(p.dir)
	if gotRoot != wantRoot {
		t.Errorf("project dir = %q, want %q", gotRoot, wantRoot)
	}
	if len(p.manifest.Dependencies) == 0 {
		t.Error("manifest dependencies not loaded")
	}
	if _, ok := p.set.Find("base"); !ok {
		t.Error("package set not loaded")
	}
}

func TestOpenProjectMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	c := New(io.Discard, log.InfoLevel)
	if _, err := c.openProject(); err == nil {
		t.Error("openProject() should fail outside a project")
	}
}

// writeProjectFiles creates a minimal project: a manifest depending on
// "base" and a package set with base served from baseURL (an archive), or
// a placeholder git repo when baseURL is empty.
func writeProjectFiles(t *testing.T, dir, baseURL string) {
	t.Helper()

	manifestContent := "dependencies = [\"base\"]\n"
	var setContent string
	if baseURL != "" {
		setContent = "[[package]]\nname = \"base\"\nurl = \"" + baseURL + "\"\ndependencies = []\n"
	} else {
		setContent = "[[package]]\nname = \"base\"\nrepo = \"https://git.example.com/base\"\nversion = \"v1\"\ndependencies = []\n"
	}

	if err := os.WriteFile(filepath.Join(dir, "vessel.toml"), []byte(manifestContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package-set.toml"), []byte(setContent), 0o644); err != nil {
		t.Fatal(err)
	}
}
