package drawer

import (
	"os"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	colors "gopkg.in/go-playground/colors.v1"

	"github.com/askiada/wapm-shell/pkg/shell/measure"
)

// DOTDrawer is a drawer that creates a Graphviz DOT file with the stage
// graph of a run.
type DOTDrawer struct {
	graph    graph.Graph[string, string]
	stages   map[string]struct{}
	fileName string
}

// NewDOTDrawer creates a new DOT drawer writing to fileName.
func NewDOTDrawer(fileName string) *DOTDrawer {
	return &DOTDrawer{
		fileName: fileName,
		graph:    graph.New(graph.StringHash, graph.Directed()),
		stages:   make(map[string]struct{}),
	}
}

// AddStage adds a stage to the pipeline graph. Labels seen in a previous run
// of the session are kept as they are.
func (d *DOTDrawer) AddStage(label string) error {
	err := d.graph.AddVertex(label)
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrap(err, "unable to add vertex")
	}

	d.stages[label] = struct{}{}

	return nil
}

// AddLink adds a link between parent and child stages.
func (d *DOTDrawer) AddLink(parentLabel, childLabel string) error {
	err := d.graph.AddEdge(parentLabel, childLabel)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentLabel, childLabel)
	}

	return nil
}

const maxRGB = 240

// AddMeasure colours every measured stage by its share of the total bytes
// emitted during the run, from green (little) to red (most).
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	var maxBytes int64
	for _, mt := range msr.AllMetrics() {
		if mt.Bytes() > maxBytes {
			maxBytes = mt.Bytes()
		}
	}
	if maxBytes == 0 {
		return nil
	}

	for label, mt := range msr.AllMetrics() {
		if _, ok := d.stages[label]; !ok {
			continue
		}
		frac := float64(mt.Bytes()) / float64(maxBytes)
		heat, err := colors.RGB(uint8(maxRGB*frac), uint8(maxRGB*(1-frac)), 0)
		if err != nil {
			return errors.Wrap(err, "unable to build colour")
		}

		_, properties, err := d.graph.VertexWithProperties(label)
		if err != nil {
			return errors.Wrap(err, "unable to get vertex properties")
		}
		properties.Attributes["style"] = "filled"
		properties.Attributes["fillcolor"] = heat.ToHEX().String()
	}

	return nil
}

// Draw creates the DOT file with the pipeline graph.
func (d *DOTDrawer) Draw() error {
	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	err = dot(d.graph, file)
	if err != nil {
		return errors.Wrapf(err, "unable to render dot file %s", d.fileName)
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
