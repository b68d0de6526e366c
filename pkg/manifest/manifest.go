// Package manifest loads the project manifest (vessel.toml) and the
// package-set file (package-set.toml), producing the in-memory types the
// resolver consumes. File formats live here, outside the resolution core.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/dfinity/vessel/pkg/errors"
	"github.com/dfinity/vessel/pkg/pkgset"
)

const (
	// File is the project manifest filename.
	File = "vessel.toml"
	// SetFile is the package-set filename.
	SetFile = "package-set.toml"
)

// Manifest is the project-specific configuration: the packages the project
// directly depends on and, optionally, a pinned compiler version.
type Manifest struct {
	Compiler     string   `toml:"compiler,omitempty"`
	Dependencies []string `toml:"dependencies"`
}

// Load reads and parses a vessel.toml manifest.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "no manifest at %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "failed to parse %s", path)
	}
	return &m, nil
}

// setFile mirrors the package-set TOML structure.
type setFile struct {
	Packages []setPackage `toml:"package"`
}

// setPackage is one [[package]] table. Exactly one of (repo, version) or
// url must be present, selecting the git or archive source kind.
type setPackage struct {
	Name         string   `toml:"name"`
	Repo         string   `toml:"repo,omitempty"`
	Version      string   `toml:"version,omitempty"`
	URL          string   `toml:"url,omitempty"`
	Dependencies []string `toml:"dependencies"`
}

// LoadSet reads and parses a package-set.toml file into a validated Set.
func LoadSet(path string) (pkgset.Set, error) {
	var file setFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "no package set at %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidSet, err, "failed to parse %s", path)
	}

	packages := make([]pkgset.Package, 0, len(file.Packages))
	for _, p := range file.Packages {
		src, err := p.source()
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkgset.Package{
			Name:         p.Name,
			Source:       src,
			Dependencies: p.Dependencies,
		})
	}
	return pkgset.New(packages)
}

func (p setPackage) source() (pkgset.Source, error) {
	switch {
	case p.URL != "" && p.Repo == "":
		return pkgset.ArchiveSource{URL: p.URL}, nil
	case p.Repo != "" && p.URL == "":
		if p.Version == "" {
			return nil, errors.New(errors.ErrCodeInvalidSet, "package %q has a repo but no version", p.Name)
		}
		if !pkgset.ValidVersion(p.Version) {
			return nil, errors.New(errors.ErrCodeInvalidVersion, "package %q has invalid version %q", p.Name, p.Version)
		}
		return pkgset.GitSource{RepoURL: p.Repo, Ref: p.Version}, nil
	case p.Repo != "" && p.URL != "":
		return nil, errors.New(errors.ErrCodeInvalidSet, "package %q declares both repo and url", p.Name)
	default:
		return nil, errors.New(errors.ErrCodeInvalidSet, "package %q declares neither repo nor url", p.Name)
	}
}

// Discover walks from dir upward looking for a vessel.toml and returns the
// directory containing it. This lets vessel run from anywhere inside a
// project, the way the compiler tools expect.
func Discover(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(current, File)); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", errors.New(errors.ErrCodeFileNotFound,
				"could not find a %s file in this directory or a parent one", File)
		}
		current = parent
	}
}

const initialManifest = `# The packages this project directly depends on.
dependencies = ["base", "matchers"]

# Pin a compiler version to enable 'vessel bin':
# compiler = "0.8.7"
`

const initialSet = `# The package-set catalog: every package vessel can install,
# with its source location and declared dependencies.
#
# Add your own packages or override upstream ones by editing the
# [[package]] tables below. Run 'vessel upgrade-set' to print the
# import line for the latest upstream release.

[[package]]
name = "base"
repo = "https://github.com/dfinity/motoko-base"
version = "moc-0.8.7"
dependencies = []

[[package]]
name = "matchers"
repo = "https://github.com/kritzcreek/motoko-matchers"
version = "v1.2.0"
dependencies = ["base"]
`

// Init writes a starter manifest and package set into dir. It refuses to
// overwrite existing files.
func Init(dir string) error {
	manifestPath := filepath.Join(dir, File)
	setPath := filepath.Join(dir, SetFile)

	for _, path := range []string{manifestPath, setPath} {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrCodeInvalidManifest,
				"failed to initialize, there is an existing %s here", filepath.Base(path))
		}
	}

	if err := os.WriteFile(manifestPath, []byte(initialManifest), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", File, err)
	}
	if err := os.WriteFile(setPath, []byte(initialSet), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", SetFile, err)
	}
	return nil
}
