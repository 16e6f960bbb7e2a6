package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// RenderSVG lays out and rasterizes a DOT graph as SVG. Each call spins up
// its own graphviz instance; plan graphs are small enough that the startup
// cost does not matter.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("graphviz init: %w", err)
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse plan graph: %w", err)
	}
	defer graph.Close()

	var out bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.SVG, &out); err != nil {
		return nil, fmt.Errorf("render plan graph: %w", err)
	}
	return out.Bytes(), nil
}
