// Package render turns finished plans into Graphviz DOT text and SVG
// images for inspection of the chosen dependency graph.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/keelpm/keel/pkg/atom"
	"github.com/keelpm/keel/pkg/solve"
)

// Options configures plan graph rendering.
type Options struct {
	// Detailed includes version and slot in node labels.
	// When false, only the package key is shown.
	Detailed bool
}

// ToDOT converts a plan to Graphviz DOT format. Each chosen package is a
// node; an edge is drawn from a package to every chosen package that
// satisfies one of its dependency atoms. Root packages get a darker fill.
func ToDOT(p *solve.Plan, opts Options) string {
	rootKeys := make(map[string]bool, len(p.Roots))
	for _, r := range p.Roots {
		if a, err := atom.Parse(r); err == nil {
			rootKeys[a.Key] = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString("digraph plan {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for i := range p.Packages {
		pkg := &p.Packages[i]
		label := fmtLabel(pkg, opts.Detailed)
		attrs := fmtAttrs(pkg, label, rootKeys[pkg.Key])
		fmt.Fprintf(&buf, "  %q [%s];\n", pkg.Key, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for i := range p.Packages {
		pkg := &p.Packages[i]
		for _, to := range edgeTargets(p, pkg) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", pkg.Key, to)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(pkg *solve.PlanPackage, detailed bool) string {
	if !detailed {
		return pkg.Key
	}
	parts := []string{pkg.Key, "version: " + pkg.Version}
	if pkg.Slot != "" {
		parts = append(parts, "slot: "+pkg.Slot)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(pkg *solve.PlanPackage, label string, root bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if root {
		attrs = append(attrs, "fillcolor=lightblue")
	}
	return attrs
}

// edgeTargets maps pkg's dependency atoms onto the plan's chosen packages.
// Blockers and atoms whose key was not chosen (pruned during backtracking)
// produce no edge. Duplicate targets from DEPEND/RDEPEND overlap collapse.
func edgeTargets(p *solve.Plan, pkg *solve.PlanPackage) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(deps []string) {
		for _, d := range deps {
			a, err := atom.Parse(d)
			if err != nil || a.Blocks || a.Key == pkg.Key {
				continue
			}
			if p.Package(a.Key) == nil || seen[a.Key] {
				continue
			}
			seen[a.Key] = true
			out = append(out, a.Key)
		}
	}
	add(pkg.Depends)
	add(pkg.RDepends)
	return out
}
