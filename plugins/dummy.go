package plugins

import (
	"context"

	"go.uber.org/zap"

	"tempus/common"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/routing"
)

const DummyName = "dummy"

// Dummy accepts any request, logs every phase and returns no roadmap.
type Dummy struct {
	*plugin.Base
}

func NewDummy(log *zap.Logger) (plugin.Plugin, error) {
	p := &Dummy{
		Base: plugin.NewBase(DummyName, plugin.Capabilities{
			OptimizationCriteria: common.CostIDs(),
			IntermediateSteps:    true,
			DepartAfter:          true,
			ArriveBefore:         true,
		}, log),
	}
	if err := p.Options().Declare("verbose", plugin.OptionBool, "Log requests in full", false); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Dummy) phase(name string, fields ...zap.Field) {
	p.Log().Info("Phase", append([]zap.Field{zap.String("phase", name)}, fields...)...)
}

func (p *Dummy) PreBuild(ctx context.Context) error {
	p.phase("pre_build")
	return p.Base.PreBuild(ctx)
}

func (p *Dummy) Build(ctx context.Context) error {
	p.phase("build")
	return p.Base.Build(ctx)
}

func (p *Dummy) PostBuild(ctx context.Context, g *multimodal.Graph) error {
	p.phase("post_build", zap.Int("vertices", g.NumVertices()))
	return p.Base.PostBuild(ctx, g)
}

func (p *Dummy) Validate(ctx context.Context) error {
	p.phase("validate")
	return p.Base.Validate(ctx)
}

func (p *Dummy) Cycle(ctx context.Context) error {
	p.phase("cycle")
	return p.Base.Cycle(ctx)
}

func (p *Dummy) PreProcess(ctx context.Context, r *routing.Request) error {
	fields := []zap.Field{zap.Int("steps", len(r.Steps))}
	if verbose, _ := p.Options().Bool("verbose"); verbose {
		fields = append(fields, zap.Any("request", r))
	}
	p.phase("pre_process", fields...)
	return p.Base.PreProcess(ctx, r)
}

func (p *Dummy) Process(ctx context.Context) error {
	p.phase("process")
	p.Res = routing.Result{}
	return p.Base.Process(ctx)
}

func (p *Dummy) PostProcess(ctx context.Context) error {
	p.phase("post_process")
	return p.Base.PostProcess(ctx)
}

func (p *Dummy) Result(ctx context.Context) (routing.Result, error) {
	p.phase("result")
	return p.Base.Result(ctx)
}

func (p *Dummy) Cleanup(ctx context.Context) error {
	p.phase("cleanup")
	return p.Base.Cleanup(ctx)
}
