package plugins

import (
	"context"
	"math"
	"slices"

	"go.uber.org/zap"

	"tempus/common"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/routing"
	"tempus/utils/timer"
)

const MultimodalName = "sample_multi"

// Multimodal combines walking and public transport on the multimodal graph.
type Multimodal struct {
	*plugin.Base

	walking  float64
	transit  float64
	boarding float64
}

func NewMultimodal(log *zap.Logger) (plugin.Plugin, error) {
	p := &Multimodal{
		Base: plugin.NewBase(MultimodalName, plugin.Capabilities{
			OptimizationCriteria: []common.CostID{common.CostDistance, common.CostDuration},
			IntermediateSteps:    true,
		}, log),
	}
	o := p.Options()
	for _, d := range []struct {
		name string
		desc string
		def  float64
	}{
		{"walking_speed", "Average walking speed (km/h)", 5.0},
		{"transport_speed", "Average public transport speed (km/h)", ptSpeed},
		{"boarding_time", "Average waiting time at a stop (min)", 5.0},
	} {
		if err := o.Declare(d.name, plugin.OptionFloat, d.desc, d.def); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Multimodal) PreProcess(ctx context.Context, r *routing.Request) error {
	if err := p.Base.PreProcess(ctx, r); err != nil {
		return err
	}
	o := p.Options()
	var err error
	if p.walking, err = o.Float("walking_speed"); err != nil {
		return err
	}
	if p.transit, err = o.Float("transport_speed"); err != nil {
		return err
	}
	if p.boarding, err = o.Float("boarding_time"); err != nil {
		return err
	}
	if p.walking <= 0 || p.transit <= 0 || p.boarding < 0 {
		return plugin.ErrInvalidArgument
	}
	return nil
}

// costs returns distance (m) and duration (min) of an edge, +Inf when the
// edge cannot be used.
func (p *Multimodal) costs(e multimodal.Edge) (float64, float64) {
	g := p.Graph
	inf := math.Inf(1)
	switch e.ConnectionType() {
	case multimodal.Road2Road:
		re, ok := g.RoadEdge(e)
		if !ok {
			return inf, inf
		}
		s := g.Road().Section(re)
		if !s.Allows(common.TransportPedestrial) {
			return inf, inf
		}
		return s.Length, minutes(s.Length, p.walking)

	case multimodal.Transport2Transport:
		pe, ok := g.PublicTransportEdge(e)
		if !ok {
			return inf, inf
		}
		pg, _ := g.PublicTransport(e.Source.Network)
		d := pg.Section(pe).Length
		return d, minutes(d, p.transit)

	case multimodal.Road2Transport:
		d := p.stopAccess(e.Target, e.Source)
		return d, minutes(d, p.walking) + p.boarding

	case multimodal.Transport2Road:
		d := p.stopAccess(e.Source, e.Target)
		return d, minutes(d, p.walking)
	}
	// points of interest are not routed through
	return inf, inf
}

// stopAccess is the walking distance between a stop and one end of the road
// section it lies on.
func (p *Multimodal) stopAccess(stop, end multimodal.Vertex) float64 {
	s, ok := p.Graph.Stop(stop)
	if !ok {
		return math.Inf(1)
	}
	rg := p.Graph.Road()
	length := rg.Section(s.RoadEdge).Length
	if rg.Source(s.RoadEdge) == end.Road {
		return length * s.Abscissa
	}
	return length * (1 - s.Abscissa)
}

func (p *Multimodal) allowedNetwork(v multimodal.Vertex) bool {
	if v.Type != multimodal.VertexPublicTransport || len(p.Request.AllowedNetworks) == 0 {
		return true
	}
	return slices.Contains(p.Request.AllowedNetworks, v.Network)
}

func (p *Multimodal) Process(ctx context.Context) error {
	if err := p.Base.Process(ctx); err != nil {
		return err
	}
	g := p.Graph
	t := timer.New()
	iterations := 0
	var result routing.Result

	// one roadmap per criterion, criteria are not combined
	for _, criterion := range p.Request.OptimizingCriteria {
		s := routing.Search[multimodal.Vertex, multimodal.Edge]{
			OutEdges: func(v multimodal.Vertex) []multimodal.Edge {
				return slices.DeleteFunc(g.OutEdges(v), func(e multimodal.Edge) bool { return !p.allowedNetwork(e.Target) })
			},
			Target: func(e multimodal.Edge) multimodal.Vertex { return e.Target },
			Weight: func(e multimodal.Edge) float64 {
				d, dt := p.costs(e)
				if criterion == common.CostDuration {
					return dt
				}
				return d
			},
		}

		var (
			path  []multimodal.Edge
			found = true
		)
		for i := 1; i < len(p.Request.Steps); i++ {
			from := multimodal.RoadVertex(p.Request.Steps[i-1].Location)
			to := multimodal.RoadVertex(p.Request.Steps[i].Location)
			tree, err := s.Run(ctx, from, func(v multimodal.Vertex) bool { return v == to })
			if err != nil {
				return err
			}
			iterations += tree.Iterations
			leg, ok := tree.PathTo(to, func(e multimodal.Edge) multimodal.Vertex { return e.Source })
			if !ok {
				p.Log().Warn("No path found", zap.Stringer("from", from), zap.Stringer("to", to), zap.Stringer("criterion", criterion))
				found = false
				break
			}
			path = append(path, leg...)
		}
		if found {
			result = append(result, p.roadmap(path))
		}
	}

	m := p.Metrics()
	m[plugin.MetricTime] = t.Elapsed()
	m[plugin.MetricIterations] = iterations
	p.Res = result
	return nil
}

func (p *Multimodal) roadmap(path []multimodal.Edge) routing.Roadmap {
	g := p.Graph
	var rm routing.Roadmap
	if len(path) > 0 {
		rm.Path = append(rm.Path, path[0].Source)
	}
	for _, e := range path {
		rm.Path = append(rm.Path, e.Target)
		var step routing.RoadmapStep
		switch e.ConnectionType() {
		case multimodal.Road2Road:
			re, _ := g.RoadEdge(e)
			s := g.Road().Section(re)
			step = &routing.RoadStep{
				StepBase:   routing.StepBase{TransportType: common.TransportPedestrial},
				Edge:       re,
				SectionID:  s.DBID,
				RoadName:   s.RoadName,
				DistanceKm: s.Length / 1000,
			}
		case multimodal.Transport2Transport:
			pe, _ := g.PublicTransportEdge(e)
			pg, _ := g.PublicTransport(e.Source.Network)
			step = &routing.PublicTransportStep{
				StepBase:      routing.StepBase{TransportType: pg.Network.ProvidedTransportTypes},
				Network:       pg.Network.DBID,
				Section:       pe,
				DepartureStop: pg.Stop(e.Source.Stop).DBID,
				ArrivalStop:   pg.Stop(e.Target.Stop).DBID,
			}
		default:
			final := common.TransportPedestrial
			if e.Target.Type == multimodal.VertexPublicTransport {
				n, _ := g.Network(e.Target.Network)
				final = n.ProvidedTransportTypes
			}
			step = &routing.GenericStep{
				StepBase:  routing.StepBase{TransportType: common.TransportPedestrial},
				Edge:      e,
				FinalMode: final,
			}
		}
		d, dt := p.costs(e)
		step.SetCost(common.CostDistance, d)
		step.SetCost(common.CostDuration, dt)
		rm.AddStep(step)
	}
	return rm
}
