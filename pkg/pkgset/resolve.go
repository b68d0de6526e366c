package pkgset

import (
	"strings"

	"github.com/dfinity/vessel/pkg/errors"
)

// Resolution is the transitive closure of packages reachable from a set of
// manifest roots, together with a topological ordering that places every
// package strictly before its dependents.
type Resolution struct {
	order    []string
	packages map[string]*Package
}

// Order returns package names in dependency order: every package appears
// before any package that depends on it. The order is deterministic for a
// given set and root list.
func (r *Resolution) Order() []string { return r.order }

// Package returns the resolved descriptor for name.
func (r *Resolution) Package(name string) (*Package, bool) {
	pkg, ok := r.packages[name]
	return pkg, ok
}

// Packages returns the resolved descriptors in dependency order.
func (r *Resolution) Packages() []*Package {
	pkgs := make([]*Package, len(r.order))
	for i, name := range r.order {
		pkgs[i] = r.packages[name]
	}
	return pkgs
}

// Len returns the number of resolved packages.
func (r *Resolution) Len() int { return len(r.order) }

// CycleError reports a dependency cycle as the sequence of package names
// that closes it, e.g. [A B A].
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Path, " -> ")
}

// Resolve computes the transitive closure of roots over set.
//
// Traversal is depth-first with three-color marking (unvisited, in-progress,
// done). A dependency name absent from the set aborts immediately with
// ErrCodeUnknownPackage; revisiting an in-progress package aborts with
// ErrCodeCycle carrying a [CycleError] whose Path names the cycle. On
// success the Resolution's order is the traversal's completion order, which
// places dependencies before dependents.
//
// Resolve is a pure function over its inputs and never returns a partial
// Resolution.
func Resolve(set Set, roots []string) (*Resolution, error) {
	const (
		white = iota // unvisited
		gray         // in-progress
		black        // done
	)

	color := make(map[string]int, len(set))
	res := &Resolution{packages: make(map[string]*Package)}

	var stack []string
	var visit func(name string) error
	visit = func(name string) error {
		pkg, ok := set[name]
		if !ok {
			return errors.New(errors.ErrCodeUnknownPackage, "package %q is not in the package set", name)
		}

		color[name] = gray
		stack = append(stack, name)
		for _, dep := range pkg.Dependencies {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				return errors.Wrap(errors.ErrCodeCycle, cycleFrom(stack, dep), "package set is not buildable")
			}
		}
		stack = stack[:len(stack)-1]

		color[name] = black
		res.packages[name] = pkg
		res.order = append(res.order, name)
		return nil
	}

	for _, root := range roots {
		if color[root] == white {
			if err := visit(root); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// cycleFrom extracts the cycle path from the traversal stack: the segment
// from the first occurrence of repeated through the stack top, closed by
// repeated itself.
func cycleFrom(stack []string, repeated string) *CycleError {
	start := 0
	for i, name := range stack {
		if name == repeated {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	path = append(path, stack[start:]...)
	path = append(path, repeated)
	return &CycleError{Path: path}
}
