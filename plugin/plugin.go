// Package plugin defines the life cycle routing plugins go through and the
// registry they are loaded from.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/maruel/natural"
	"go.uber.org/zap"

	"tempus/common"
	"tempus/multimodal"
	"tempus/routing"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrBadState        = errors.New("bad state")
	ErrNotFound        = errors.New("plugin not found")
	ErrUnsupported     = errors.New("unsupported request")
)

// Capabilities tells which requests a plugin can process.
type Capabilities struct {
	OptimizationCriteria []common.CostID
	IntermediateSteps    bool
	DepartAfter          bool
	ArriveBefore         bool
}

// Supports reports whether c is among supported criteria.
func (c Capabilities) Supports(id common.CostID) bool {
	for _, x := range c.OptimizationCriteria {
		if x == id {
			return true
		}
	}
	return false
}

// Check rejects requests the plugin cannot process.
func (c Capabilities) Check(r *routing.Request) error {
	for _, id := range r.OptimizingCriteria {
		if !c.Supports(id) {
			return fmt.Errorf("optimizing criterion %q: %w", id, ErrUnsupported)
		}
	}
	if !c.IntermediateSteps && len(r.Steps) > 2 {
		return fmt.Errorf("intermediate steps: %w", ErrUnsupported)
	}
	for i, s := range r.Steps {
		switch s.Constraint.Type {
		case routing.ConstraintAfter:
			if !c.DepartAfter {
				return fmt.Errorf("step %d, depart after constraint: %w", i, ErrUnsupported)
			}
		case routing.ConstraintBefore:
			if !c.ArriveBefore {
				return fmt.Errorf("step %d, arrive before constraint: %w", i, ErrUnsupported)
			}
		}
	}
	return nil
}

const (
	MetricTime       = "time_s"
	MetricIterations = "iterations"
)

// Metrics are named performance values, each is a bool, int, int64,
// float64 or string.
type Metrics map[string]any

func NewMetrics() Metrics {
	return Metrics{MetricTime: 0.0, MetricIterations: 0}
}

// Names returns metric names in natural order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

func (m Metrics) MetricToString(name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", fmt.Errorf("metric %q: %w", name, ErrInvalidArgument)
	}
	return valueToString(v)
}

// Plugin is a routing algorithm. Build phases run once per graph, process
// phases once per request, always through a Session.
type Plugin interface {
	Name() string
	Options() *Options
	Capabilities() Capabilities
	Metrics() Metrics

	PreBuild(ctx context.Context) error
	Build(ctx context.Context) error
	PostBuild(ctx context.Context, g *multimodal.Graph) error
	Validate(ctx context.Context) error
	Cycle(ctx context.Context) error

	PreProcess(ctx context.Context, r *routing.Request) error
	Process(ctx context.Context) error
	PostProcess(ctx context.Context) error
	Result(ctx context.Context) (routing.Result, error)
	Cleanup(ctx context.Context) error
}

// Factory creates a plugin instance.
type Factory func(log *zap.Logger) (Plugin, error)

// Base implements every phase with the default behavior, plugins embed it
// and override what they need.
type Base struct {
	name    string
	log     *zap.Logger
	options *Options
	caps    Capabilities
	metrics Metrics

	Graph   *multimodal.Graph
	Request *routing.Request
	Res     routing.Result
}

func NewBase(name string, caps Capabilities, log *zap.Logger) *Base {
	return &Base{
		name:    name,
		log:     log.Named(name),
		options: NewOptions(),
		caps:    caps,
		metrics: NewMetrics(),
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Log() *zap.Logger {
	return b.log
}

func (b *Base) Options() *Options {
	return b.options
}

func (b *Base) Capabilities() Capabilities {
	return b.caps
}

func (b *Base) Metrics() Metrics {
	return b.metrics
}

func (b *Base) PreBuild(context.Context) error {
	b.log.Debug("pre_build")
	return nil
}

func (b *Base) Build(context.Context) error {
	b.log.Debug("build")
	return nil
}

func (b *Base) PostBuild(_ context.Context, g *multimodal.Graph) error {
	b.log.Debug("post_build")
	b.Graph = g
	return nil
}

func (b *Base) Validate(context.Context) error {
	b.log.Debug("validate")
	return nil
}

func (b *Base) Cycle(context.Context) error {
	b.log.Debug("cycle")
	return nil
}

// PreProcess keeps the request after checking it against capabilities.
func (b *Base) PreProcess(_ context.Context, r *routing.Request) error {
	b.log.Debug("pre_process")
	if b.Graph == nil {
		return fmt.Errorf("plugin %s has no graph: %w", b.name, ErrBadState)
	}
	if err := r.CheckConsistency(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := b.caps.Check(r); err != nil {
		return err
	}
	for i, s := range r.Steps {
		if !b.Graph.Valid(multimodal.RoadVertex(s.Location)) {
			return fmt.Errorf("step %d, road vertex %d: %w", i, s.Location, ErrInvalidArgument)
		}
	}
	b.Request = r
	b.Res = nil
	return nil
}

func (b *Base) Process(context.Context) error {
	b.log.Debug("process")
	return nil
}

func (b *Base) PostProcess(context.Context) error {
	b.log.Debug("post_process")
	return nil
}

func (b *Base) Result(context.Context) (routing.Result, error) {
	b.log.Debug("result")
	return b.Res, nil
}

func (b *Base) Cleanup(context.Context) error {
	b.log.Debug("cleanup")
	b.Request = nil
	b.Res = nil
	return nil
}
