// Package drawer renders the stage graph of a pipeline run to a file, so a
// run can be inspected after the fact. The default drawer writes Graphviz
// DOT, with stages heat-coloured by the bytes they emitted.
package drawer

import (
	"github.com/askiada/wapm-shell/pkg/shell/measure"
)

// Drawer is an interface that defines the methods for drawing a pipeline run.
type Drawer interface {
	// AddStage adds a stage to the pipeline graph.
	AddStage(label string) error
	// AddLink adds a link between parent and child stages.
	AddLink(parentLabel, childLabel string) error
	// AddMeasure colours the graph using the given measure.
	AddMeasure(m measure.Measure) error
	// Draw creates a file with the pipeline graph.
	Draw() error
}
