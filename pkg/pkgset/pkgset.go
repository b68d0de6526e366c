// Package pkgset models the package-set catalog: the authoritative mapping
// from package name to its source location and declared dependencies.
//
// A Set is built once from parsed package-set data and is read-only
// afterwards. Resolution over a Set is a pure graph operation with no I/O;
// see [Resolve].
package pkgset

import (
	"slices"
	"strings"

	"github.com/dfinity/vessel/pkg/errors"
)

// Source describes where a package's content comes from. Exactly two kinds
// exist: [GitSource] and [ArchiveSource].
type Source interface {
	// Token returns the structural identity of the source: the exact ref
	// string for git sources and the exact URL for archive sources. Cache
	// entries are keyed by (name, token), so a moving branch name keeps
	// the same token across pushes.
	Token() string

	isSource()
}

// GitSource is a package fetched by cloning a repository and checking out
// a ref. The ref may be a branch name, tag, or commit hash; the fetch layer
// does not distinguish them.
type GitSource struct {
	RepoURL string
	Ref     string
}

// Token returns the exact ref string.
func (s GitSource) Token() string { return s.Ref }

func (GitSource) isSource() {}

// ArchiveSource is a package fetched by downloading and extracting a
// tarball from a URL.
type ArchiveSource struct {
	URL string
}

// Token returns the exact archive URL.
func (s ArchiveSource) Token() string { return s.URL }

func (ArchiveSource) isSource() {}

// Package is a single descriptor in a package set. Immutable once the set
// is built.
type Package struct {
	Name         string
	Source       Source
	Dependencies []string
}

// Set maps package names to their descriptors. Every descriptor's name is
// unique within the set; duplicates are rejected at construction.
type Set map[string]*Package

// New builds a Set from parsed package descriptors.
// Returns ErrCodeInvalidName if any package carries a name that is not a
// safe directory name, or ErrCodeInvalidSet if two descriptors share a name.
// Dangling dependency references are legal here; they surface as
// ErrCodeUnknownPackage at resolution time.
func New(packages []Package) (Set, error) {
	set := make(Set, len(packages))
	for _, pkg := range packages {
		if !ValidName(pkg.Name) {
			return nil, errors.New(errors.ErrCodeInvalidName, "invalid package name: %q", pkg.Name)
		}
		if _, exists := set[pkg.Name]; exists {
			return nil, errors.New(errors.ErrCodeInvalidSet, "duplicate package name: %q", pkg.Name)
		}
		p := pkg
		set[p.Name] = &p
	}
	return set, nil
}

// Find returns the descriptor for name, or nil and false if absent.
func (s Set) Find(name string) (*Package, bool) {
	pkg, ok := s[name]
	return pkg, ok
}

// Names returns all package names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidName reports whether input is safe to use as a directory name:
// alphanumeric plus "-_.", non-empty after trimming dots, and no leading
// dash. Guards against path traversal through package data.
func ValidName(input string) bool {
	for _, c := range input {
		if !isAlnum(c) && !strings.ContainsRune("-_.", c) {
			return false
		}
	}
	return strings.Trim(input, ".") != "" && !strings.HasPrefix(input, "-")
}

// ValidVersion reports whether a version or ref string is safe to use as a
// directory name. Same rules as ValidName.
func ValidVersion(input string) bool { return ValidName(input) }

func isAlnum(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
