package plugins

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"tempus/common"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/road"
	"tempus/routing"
	"tempus/utils/timer"
)

const RoadName = "sample_road"

// speed in km/h of sections without any
const defaultCarSpeed = 50.0

// Road routes a single private mode on the road graph.
type Road struct {
	*plugin.Base

	mode     common.DBID
	astar    bool
	walking  float64
	cycling  float64
	maxSpeed float64
	// fastest speed any section allows a motor vehicle
	topSpeed float64
}

func NewRoad(log *zap.Logger) (plugin.Plugin, error) {
	p := &Road{
		Base: plugin.NewBase(RoadName, plugin.Capabilities{
			OptimizationCriteria: []common.CostID{common.CostDistance, common.CostDuration},
			IntermediateSteps:    true,
		}, log),
	}
	o := p.Options()
	for _, d := range []struct {
		name string
		typ  plugin.OptionType
		desc string
		def  any
	}{
		{"astar", plugin.OptionBool, "Use A* with a straight line heuristic", false},
		{"transport_type", plugin.OptionInt, "Transport type to use, 0 picks the first allowed of car, cycle and pedestrian", int64(0)},
		{"walking_speed", plugin.OptionFloat, "Average walking speed (km/h)", 5.0},
		{"cycling_speed", plugin.OptionFloat, "Average cycling speed (km/h)", 15.0},
	} {
		if err := o.Declare(d.name, d.typ, d.desc, d.def); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Road) PostBuild(ctx context.Context, g *multimodal.Graph) error {
	if err := p.Base.PostBuild(ctx, g); err != nil {
		return err
	}
	rg := g.Road()
	p.topSpeed = defaultCarSpeed
	for _, e := range rg.Edges() {
		s := rg.Section(e)
		p.topSpeed = max(p.topSpeed, s.CarSpeedLimit, s.CarAverageSpeed, s.BusAverageSpeed)
	}
	return nil
}

func (p *Road) PreProcess(ctx context.Context, r *routing.Request) error {
	if err := p.Base.PreProcess(ctx, r); err != nil {
		return err
	}
	o := p.Options()
	var err error
	if p.astar, err = o.Bool("astar"); err != nil {
		return err
	}
	if p.walking, err = o.Float("walking_speed"); err != nil {
		return err
	}
	if p.cycling, err = o.Float("cycling_speed"); err != nil {
		return err
	}
	if p.walking <= 0 || p.cycling <= 0 {
		return fmt.Errorf("speeds must be positive: %w", plugin.ErrInvalidArgument)
	}
	mode, err := o.Int("transport_type")
	if err != nil {
		return err
	}

	p.mode = mode
	if p.mode == 0 {
		for _, m := range []common.DBID{common.TransportCar, common.TransportCycle, common.TransportPedestrial} {
			if r.Allows(m) {
				p.mode = m
				break
			}
		}
	}
	switch p.mode {
	case common.TransportCar, common.TransportPedestrial, common.TransportCycle, common.TransportBus:
	default:
		return fmt.Errorf("transport type %d: %w", p.mode, plugin.ErrUnsupported)
	}
	if !r.Allows(p.mode) {
		return fmt.Errorf("transport type %d not allowed by request: %w", p.mode, plugin.ErrUnsupported)
	}

	switch p.mode {
	case common.TransportPedestrial:
		p.maxSpeed = p.walking
	case common.TransportCycle:
		p.maxSpeed = p.cycling
	default:
		p.maxSpeed = p.topSpeed
	}
	return nil
}

// speed returns the speed of the current mode on a section in km/h.
func (p *Road) speed(s *road.Section) float64 {
	switch p.mode {
	case common.TransportPedestrial:
		return p.walking
	case common.TransportCycle:
		return p.cycling
	case common.TransportBus:
		if s.BusAverageSpeed > 0 {
			return s.BusAverageSpeed
		}
	}
	switch {
	case s.CarAverageSpeed > 0:
		return s.CarAverageSpeed
	case s.CarSpeedLimit > 0:
		return s.CarSpeedLimit
	}
	return defaultCarSpeed
}

// minutes needed to cover meters at kmh
func minutes(meters, kmh float64) float64 {
	return meters / (kmh * 1000) * 60
}

// state is a vertex together with the edge it was entered through,
// NullEdge at the origin. Turn restrictions depend on that edge.
type state struct {
	v  road.Vertex
	in road.Edge
}

// move leaves a state along an edge.
type move struct {
	from state
	e    road.Edge
}

// penalty of turning from in onto e, +Inf when forbidden for the current mode.
func (p *Road) penalty(in, e road.Edge) float64 {
	if in == road.NullEdge {
		return 0
	}
	return p.Graph.Road().MovementCost(in, e, p.mode)
}

func (p *Road) weight(c common.CostID) func(move) float64 {
	rg := p.Graph.Road()
	return func(m move) float64 {
		s := rg.Section(m.e)
		pen := p.penalty(m.from.in, m.e)
		switch {
		case math.IsInf(pen, 1):
			return pen
		case c == common.CostDuration:
			return minutes(s.Length, p.speed(s)) + pen
		}
		return s.Length
	}
}

func (p *Road) heuristic(c common.CostID, dest road.Vertex) func(state) float64 {
	if !p.astar {
		return nil
	}
	rg := p.Graph.Road()
	target := rg.Node(dest).Coordinates.Point2D()
	return func(st state) float64 {
		d := common.Distance(rg.Node(st.v).Coordinates.Point2D(), target)
		if c == common.CostDuration {
			return minutes(d, p.maxSpeed)
		}
		return d
	}
}

func (p *Road) Process(ctx context.Context) error {
	if err := p.Base.Process(ctx); err != nil {
		return err
	}
	rg := p.Graph.Road()
	criterion := p.Request.OptimizingCriteria[0]
	t := timer.New()

	var (
		path       []road.Edge
		iterations int
	)
	for i := 1; i < len(p.Request.Steps); i++ {
		from, to := p.Request.Steps[i-1].Location, p.Request.Steps[i].Location
		// restrictions also hold across an intermediate step
		source := state{v: from, in: road.NullEdge}
		if len(path) > 0 {
			source.in = path[len(path)-1]
		}
		s := routing.Search[state, move]{
			OutEdges: func(st state) []move {
				var out []move
				for _, e := range rg.OutEdges(st.v) {
					if rg.Section(e).Allows(p.mode) {
						out = append(out, move{from: st, e: e})
					}
				}
				return out
			},
			Target:    func(m move) state { return state{v: rg.Target(m.e), in: m.e} },
			Weight:    p.weight(criterion),
			Heuristic: p.heuristic(criterion, to),
		}
		var (
			reached state
			found   bool
		)
		tree, err := s.Run(ctx, source, func(st state) bool {
			if st.v == to {
				reached, found = st, true
			}
			return found
		})
		if err != nil {
			return err
		}
		iterations += tree.Iterations
		moves, ok := tree.PathTo(reached, func(m move) state { return m.from })
		if !found || !ok {
			p.Log().Warn("No path found", zap.Int("from", int(from)), zap.Int("to", int(to)))
			p.setMetrics(t, iterations)
			return nil
		}
		for _, m := range moves {
			path = append(path, m.e)
		}
	}
	p.setMetrics(t, iterations)

	rm := p.roadmap(path)
	p.Res = routing.Result{rm}
	return nil
}

func (p *Road) setMetrics(t *timer.Timer, iterations int) {
	m := p.Metrics()
	m[plugin.MetricTime] = t.Elapsed()
	m[plugin.MetricIterations] = iterations
}

// roadmap merges consecutive edges of the same road into one step.
func (p *Road) roadmap(path []road.Edge) routing.Roadmap {
	rg := p.Graph.Road()
	var (
		rm   routing.Roadmap
		step *routing.RoadStep
		turn turnCounter
	)
	if len(path) > 0 {
		rm.Path = append(rm.Path, multimodal.RoadVertex(rg.Source(path[0])))
	}
	for i, e := range path {
		s := rg.Section(e)
		rm.Path = append(rm.Path, multimodal.RoadVertex(rg.Target(e)))
		if step == nil || s.RoadName != step.RoadName {
			if step != nil {
				step.EndMovement = turn.movement(rg, path[i-1], e)
			}
			step = &routing.RoadStep{
				StepBase:  routing.StepBase{TransportType: p.mode},
				Edge:      e,
				SectionID: s.DBID,
				RoadName:  s.RoadName,
			}
			step.SetCost(common.CostDistance, 0)
			step.SetCost(common.CostDuration, 0)
			rm.AddStep(step)
		}
		turn.traverse(rg, e, p.mode)
		step.DistanceKm += s.Length / 1000
		step.StepCosts[common.CostDistance] += s.Length
		step.StepCosts[common.CostDuration] += minutes(s.Length, p.speed(s))
		if i > 0 {
			step.StepCosts[common.CostDuration] += p.penalty(path[i-1], e)
		}
	}
	if step != nil {
		step.EndMovement = routing.YouAreArrived
	}
	return rm
}

// turnCounter counts exits passed while driving on a roundabout.
type turnCounter struct {
	exits int
}

func (t *turnCounter) traverse(rg *road.Graph, e road.Edge, mode common.DBID) {
	if !rg.Section(e).IsRoundabout {
		t.exits = 0
		return
	}
	// exits available at the end of this roundabout section
	for _, o := range rg.OutEdges(rg.Target(e)) {
		s := rg.Section(o)
		if !s.IsRoundabout && s.Allows(mode) {
			t.exits++
			break
		}
	}
}

const (
	straightAngle = 30.0
	uTurnAngle    = 170.0
)

// movement tells how to go from edge in to edge out.
func (t *turnCounter) movement(rg *road.Graph, in, out road.Edge) routing.EndMovement {
	sin, sout := rg.Section(in), rg.Section(out)
	switch {
	case !sin.IsRoundabout && sout.IsRoundabout:
		return routing.RoundAboutEnter
	case sin.IsRoundabout && !sout.IsRoundabout:
		n := max(t.exits, 1)
		return routing.FirstExit + routing.EndMovement(min(n, 6)-1)
	}

	a := rg.Node(rg.Source(in)).Coordinates
	b := rg.Node(rg.Target(in)).Coordinates
	c := rg.Node(rg.Target(out)).Coordinates
	v1x, v1y := b.X-a.X, b.Y-a.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y
	angle := math.Atan2(v1x*v2y-v1y*v2x, v1x*v2x+v1y*v2y) * 180 / math.Pi
	switch {
	case math.Abs(angle) >= uTurnAngle:
		return routing.UTurn
	case angle > straightAngle:
		return routing.TurnLeft
	case angle < -straightAngle:
		return routing.TurnRight
	}
	return routing.GoAhead
}
