package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/wapm-shell/pkg/shell/measure"
	"github.com/askiada/wapm-shell/pkg/shell/model"
)

type runDrawer struct {
	Drawer
	m measure.Measure
}

// RunDrawer wraps a Drawer as a run option. When a measure is given the
// drawn graph is heat-coloured with it.
func RunDrawer(d Drawer, m measure.Measure) model.RunOption {
	return &runDrawer{Drawer: d, m: m}
}

func (rd *runDrawer) New() error {
	err := rd.AddStage(model.StartStage.Label())
	if err != nil {
		return errors.Wrap(err, "unable to add start stage to drawer")
	}
	err = rd.AddStage(model.EndStage.Label())
	if err != nil {
		return errors.Wrap(err, "unable to add end stage to drawer")
	}

	return nil
}

func (rd *runDrawer) PrepareStage(parent, stage *model.StageInfo) error {
	if stage != model.EndStage {
		err := rd.AddStage(stage.Label())
		if err != nil {
			return err
		}
	}

	return rd.AddLink(parent.Label(), stage.Label())
}

func (rd *runDrawer) OnStageOutput(_ *model.StageInfo, _ int) error {
	return nil
}

func (rd *runDrawer) Finish(_ time.Duration) error {
	if rd.m != nil {
		err := rd.AddMeasure(rd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure to drawer")
		}
	}

	return errors.Wrap(rd.Draw(), "unable to draw pipeline")
}

var _ model.RunOption = (*runDrawer)(nil)
