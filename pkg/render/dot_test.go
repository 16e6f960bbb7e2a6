package render

import (
	"strings"
	"testing"

	"github.com/keelpm/keel/pkg/solve"
)

func testPlan() *solve.Plan {
	return &solve.Plan{
		Roots: []string{"www-servers/nginx"},
		Packages: []solve.PlanPackage{
			{
				ID: "www-servers/nginx-1.25", Key: "www-servers/nginx", Version: "1.25",
				Depends: []string{"dev-libs/openssl", "!www-servers/apache", "sys-libs/pruned"},
			},
			{
				ID: "dev-libs/openssl-3.2", Key: "dev-libs/openssl", Version: "3.2", Slot: "0",
				Depends:  []string{"sys-libs/zlib"},
				RDepends: []string{"sys-libs/zlib"},
			},
			{ID: "sys-libs/zlib-1.3", Key: "sys-libs/zlib", Version: "1.3"},
		},
	}
}

func TestToDOTNodesAndEdges(t *testing.T) {
	dot := ToDOT(testPlan(), Options{})

	if !strings.HasPrefix(dot, "digraph plan {") {
		t.Fatalf("unexpected preamble: %q", dot[:min(len(dot), 40)])
	}
	for _, node := range []string{
		`"www-servers/nginx" [`,
		`"dev-libs/openssl" [`,
		`"sys-libs/zlib" [`,
	} {
		if !strings.Contains(dot, node) {
			t.Errorf("missing node %q in:\n%s", node, dot)
		}
	}
	for _, edge := range []string{
		`"www-servers/nginx" -> "dev-libs/openssl";`,
		`"dev-libs/openssl" -> "sys-libs/zlib";`,
	} {
		if !strings.Contains(dot, edge) {
			t.Errorf("missing edge %q in:\n%s", edge, dot)
		}
	}
	// DEPEND/RDEPEND overlap must not double the edge.
	if strings.Count(dot, `"dev-libs/openssl" -> "sys-libs/zlib";`) != 1 {
		t.Error("duplicate edge for overlapping depends/rdepends")
	}
}

func TestToDOTSkipsBlockersAndUnchosen(t *testing.T) {
	dot := ToDOT(testPlan(), Options{})
	if strings.Contains(dot, "apache") {
		t.Error("blocker atom leaked into the graph")
	}
	if strings.Contains(dot, "sys-libs/pruned") {
		t.Error("edge to a package the plan never chose")
	}
}

func TestToDOTRootHighlight(t *testing.T) {
	dot := ToDOT(testPlan(), Options{})
	for _, line := range strings.Split(dot, "\n") {
		if strings.Contains(line, `"www-servers/nginx" [`) && !strings.Contains(line, "fillcolor=lightblue") {
			t.Errorf("root node not highlighted: %s", line)
		}
		if strings.Contains(line, `"sys-libs/zlib" [`) && strings.Contains(line, "fillcolor=lightblue") {
			t.Errorf("non-root node highlighted: %s", line)
		}
	}
}

func TestToDOTDetailedLabels(t *testing.T) {
	plain := ToDOT(testPlan(), Options{})
	if strings.Contains(plain, "version:") {
		t.Error("plain labels include version details")
	}

	detailed := ToDOT(testPlan(), Options{Detailed: true})
	if !strings.Contains(detailed, `version: 3.2`) {
		t.Error("detailed labels missing version")
	}
	if !strings.Contains(detailed, `slot: 0`) {
		t.Error("detailed labels missing slot")
	}
}
