// Package render draws a resolved dependency closure as a Graphviz
// node-link diagram, either as raw DOT text or rendered SVG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/dfinity/vessel/pkg/pkgset"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed includes the source location and version token in node
	// labels. When false, only the package name is shown.
	Detailed bool
}

// ToDOT converts a resolution to Graphviz DOT format. Every package in the
// closure becomes a node; every dependency becomes an edge. Edges point
// from dependent to dependency. Archive-sourced packages are drawn with
// dashed outlines to distinguish them from git-sourced ones.
//
// The resulting DOT string can be rendered with [RenderSVG].
func ToDOT(res *pkgset.Resolution, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, pkg := range res.Packages() {
		attrs := fmtAttrs(pkg, opts.Detailed)
		fmt.Fprintf(&buf, "  %q [%s];\n", pkg.Name, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, pkg := range res.Packages() {
		for _, dep := range pkg.Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", pkg.Name, dep)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtAttrs(pkg *pkgset.Package, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(pkg, detailed))}
	if _, ok := pkg.Source.(pkgset.ArchiveSource); ok {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

func fmtLabel(pkg *pkgset.Package, detailed bool) string {
	if !detailed {
		return pkg.Name
	}
	switch src := pkg.Source.(type) {
	case pkgset.GitSource:
		return fmt.Sprintf("%s\n%s\n%s", pkg.Name, src.RepoURL, src.Ref)
	case pkgset.ArchiveSource:
		return fmt.Sprintf("%s\n%s", pkg.Name, src.URL)
	default:
		return pkg.Name
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
