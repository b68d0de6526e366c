// Package flags turns a materialized resolution into the package flags the
// Motoko compiler tools consume.
package flags

import (
	"fmt"
	"strings"

	"github.com/dfinity/vessel/pkg/fetch"
	"github.com/dfinity/vessel/pkg/pkgset"
)

// Flag is one (package name, source path) pair for the compiler.
type Flag struct {
	Name string
	Path string
}

// Emit orders the materialized packages by the resolution's dependency
// order: every package appears strictly before any package that depends on
// it, independent of fetch completion order. Materialized packages that
// are not part of the resolution are ignored. Pure, no I/O.
func Emit(res *pkgset.Resolution, materialized []fetch.Materialized) []Flag {
	byName := make(map[string]string, len(materialized))
	for _, m := range materialized {
		byName[m.Name] = m.Dir
	}

	out := make([]Flag, 0, res.Len())
	for _, name := range res.Order() {
		if path, ok := byName[name]; ok {
			out = append(out, Flag{Name: name, Path: path})
		}
	}
	return out
}

// Format renders flags as a single command-line fragment:
// "--package <name> <path> --package <name> <path> ...".
func Format(flags []Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = fmt.Sprintf("--package %s %s", f.Name, f.Path)
	}
	return strings.Join(parts, " ")
}

// Args renders flags as an argument list suitable for exec, in the same
// order as Format.
func Args(flags []Flag) []string {
	out := make([]string, 0, len(flags)*3)
	for _, f := range flags {
		out = append(out, "--package", f.Name, f.Path)
	}
	return out
}
