package plugins

import (
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"tempus/common"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/pt"
	"tempus/road"
	"tempus/routing"
	"tempus/utils/timer"
)

const PublicTransportName = "sample_pt"

// average public transport speed, km/h
const ptSpeed = 25.0

// PublicTransport routes between two stops of one network.
type PublicTransport struct {
	*plugin.Base

	network     *pt.Graph
	origin      pt.Vertex
	destination pt.Vertex
}

func NewPublicTransport(log *zap.Logger) (plugin.Plugin, error) {
	p := &PublicTransport{
		Base: plugin.NewBase(PublicTransportName, plugin.Capabilities{
			OptimizationCriteria: []common.CostID{common.CostDistance, common.CostDuration},
			DepartAfter:          true,
		}, log),
	}
	o := p.Options()
	for _, d := range []struct {
		name string
		typ  plugin.OptionType
		desc string
		def  any
	}{
		{"network", plugin.OptionInt, "Network to use, 0 picks the first visible one", int64(0)},
		{"origin_stop", plugin.OptionInt, "Departure stop, 0 picks the stop nearest to the origin", int64(0)},
		{"destination_stop", plugin.OptionInt, "Arrival stop, 0 picks the stop nearest to the destination", int64(0)},
		{"max_stop_distance", plugin.OptionFloat, "Maximum distance between a road node and its nearest stop (m)", 100.0},
	} {
		if err := o.Declare(d.name, d.typ, d.desc, d.def); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PublicTransport) PreProcess(ctx context.Context, r *routing.Request) error {
	if err := p.Base.PreProcess(ctx, r); err != nil {
		return err
	}
	o := p.Options()

	id, err := o.Int("network")
	if err != nil {
		return err
	}
	candidates := p.Graph.PublicTransportSelection()
	if len(r.AllowedNetworks) > 0 {
		candidates = slices.DeleteFunc(candidates, func(n common.DBID) bool { return !slices.Contains(r.AllowedNetworks, n) })
	}
	switch {
	case id == 0 && len(candidates) > 0:
		id = candidates[0]
	case !slices.Contains(candidates, id):
		return fmt.Errorf("network %d is not available: %w", id, plugin.ErrInvalidArgument)
	}
	p.network, _ = p.Graph.PublicTransport(id)

	maxDist, err := o.Float("max_stop_distance")
	if err != nil {
		return err
	}
	if p.origin, err = p.stop("origin_stop", r.Origin(), maxDist); err != nil {
		return err
	}
	if p.destination, err = p.stop("destination_stop", r.Destination(), maxDist); err != nil {
		return err
	}
	return nil
}

// stop resolves an explicit stop option or the stop nearest to a road node.
func (p *PublicTransport) stop(option string, near road.Vertex, maxDist float64) (pt.Vertex, error) {
	id, err := p.Options().Int(option)
	if err != nil {
		return pt.NullVertex, err
	}
	if id != 0 {
		v, err := p.network.VertexFromID(id)
		if err != nil {
			return pt.NullVertex, fmt.Errorf("%s: %w: %w", option, plugin.ErrInvalidArgument, err)
		}
		return v, nil
	}

	at := p.Graph.Road().Node(near).Coordinates.Point2D()
	best, bestDist := pt.NullVertex, math.Inf(1)
	for _, v := range p.network.Vertices() {
		d := common.Distance(at, p.network.Stop(v).Coordinates.Point2D())
		if d <= maxDist && d < bestDist {
			best, bestDist = v, d
		}
	}
	if best == pt.NullVertex {
		return pt.NullVertex, fmt.Errorf("%s: no stop within %gm of road vertex %d: %w", option, maxDist, near, plugin.ErrInvalidArgument)
	}
	p.Log().Debug("Stop found", zap.String("option", option), zap.Int64("stop", p.network.Stop(best).DBID), zap.Float64("distance", bestDist))
	return best, nil
}

func (p *PublicTransport) Process(ctx context.Context) error {
	if err := p.Base.Process(ctx); err != nil {
		return err
	}
	pg := p.network
	criterion := p.Request.OptimizingCriteria[0]
	t := timer.New()

	s := routing.Search[pt.Vertex, pt.Edge]{
		OutEdges: pg.OutEdges,
		Target:   pg.Target,
		Weight: func(e pt.Edge) float64 {
			if criterion == common.CostDuration {
				return minutes(pg.Section(e).Length, ptSpeed)
			}
			return pg.Section(e).Length
		},
	}
	tree, err := s.Run(ctx, p.origin, func(v pt.Vertex) bool { return v == p.destination })
	if err != nil {
		return err
	}
	m := p.Metrics()
	m[plugin.MetricTime] = t.Elapsed()
	m[plugin.MetricIterations] = tree.Iterations

	path, ok := tree.PathTo(p.destination, pg.Source)
	if !ok {
		p.Log().Warn("No path found", zap.Int64("from", pg.Stop(p.origin).DBID), zap.Int64("to", pg.Stop(p.destination).DBID))
		return nil
	}

	var rm routing.Roadmap
	rm.Path = append(rm.Path, multimodal.TransportVertex(pg.Network.DBID, p.origin))
	for i, e := range path {
		length := pg.Section(e).Length
		step := &routing.PublicTransportStep{
			StepBase:      routing.StepBase{TransportType: pg.Network.ProvidedTransportTypes},
			Network:       pg.Network.DBID,
			Section:       e,
			DepartureStop: pg.Stop(pg.Source(e)).DBID,
			ArrivalStop:   pg.Stop(pg.Target(e)).DBID,
		}
		step.SetCost(common.CostDistance, length)
		step.SetCost(common.CostDuration, minutes(length, ptSpeed))
		if i == 0 {
			p.boarding(step)
		}
		rm.AddStep(step)
		rm.Path = append(rm.Path, multimodal.TransportVertex(pg.Network.DBID, pg.Target(e)))
	}
	p.Res = routing.Result{rm}
	return nil
}

// boarding fills trip and waiting time of the first step from the
// timetable when the request departs after a given moment.
func (p *PublicTransport) boarding(step *routing.PublicTransportStep) {
	c := p.Request.Steps[0].Constraint
	if c.Type != routing.ConstraintAfter || p.network.Timetable == nil {
		return
	}
	d, ok := p.network.Timetable.NextDeparture(step.DepartureStop, c.DateTime)
	if !ok {
		return
	}
	now := common.Time(c.DateTime.Hour()*3600 + c.DateTime.Minute()*60 + c.DateTime.Second())
	step.TripID = d.Trip
	step.Wait = float64(d.Time-now) / 60
}

func (p *PublicTransport) Cleanup(ctx context.Context) error {
	p.network = nil
	return p.Base.Cleanup(ctx)
}
