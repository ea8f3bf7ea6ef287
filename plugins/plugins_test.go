package plugins_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"tempus/common"
	"tempus/internal/fixture"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/plugins"
	"tempus/routing"
)

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func load(t *testing.T, name string) (plugin.Plugin, *multimodal.Graph) {
	t.Helper()
	return loadOn(t, name, fixture.MustGraph())
}

func loadOn(t *testing.T, name string, g *multimodal.Graph) (plugin.Plugin, *multimodal.Graph) {
	t.Helper()

	r := plugin.NewRegistry(testLogger(t))
	if err := plugins.Register(r); err != nil {
		t.Fatal(err)
	}
	p, err := r.Load(name)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", name, err)
	}
	ctx := context.Background()
	if err := p.PreBuild(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Build(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.PostBuild(ctx, g); err != nil {
		t.Fatal(err)
	}
	return p, g
}

func newRequest(t *testing.T, g *multimodal.Graph, ids ...common.DBID) *routing.Request {
	t.Helper()

	steps := make([]routing.Step, len(ids))
	for i, id := range ids {
		v, err := g.Road().VertexFromID(id)
		if err != nil {
			t.Fatal(err)
		}
		steps[i] = routing.Step{Location: v}
	}
	r, err := routing.NewRequest(steps[0], steps[len(steps)-1])
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range steps[1 : len(steps)-1] {
		if err := r.AddIntermediaryStep(s); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func run(t *testing.T, p plugin.Plugin, r *routing.Request) routing.Result {
	t.Helper()

	res, err := plugin.NewSession(p, nil).Run(context.Background(), r)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

type roadStep struct {
	Name     string
	Km       float64
	Movement routing.EndMovement
}

func roadSteps(t *testing.T, rm routing.Roadmap) []roadStep {
	t.Helper()

	var out []roadStep
	for _, s := range rm.Steps {
		rs, ok := s.(*routing.RoadStep)
		if !ok {
			t.Fatalf("step %T is not a road step", s)
		}
		out = append(out, roadStep{rs.RoadName, math.Round(rs.DistanceKm*1000) / 1000, rs.EndMovement})
	}
	return out
}

func TestRoad(t *testing.T) {
	tests := []struct {
		name      string
		ids       []common.DBID
		astar     bool
		criterion common.CostID
		want      []roadStep
		distance  float64
		duration  float64
	}{
		{
			name:      "straight",
			ids:       []common.DBID{1, 4},
			criterion: common.CostDistance,
			want:      []roadStep{{"Rue A", 0.2, routing.GoAhead}, {"Rue B", 0.1, routing.YouAreArrived}},
			distance:  300,
			duration:  0.52,
		},
		{
			name:      "left turn",
			ids:       []common.DBID{1, 5},
			criterion: common.CostDistance,
			want:      []roadStep{{"Rue A", 0.1, routing.TurnLeft}, {"Rue C", 0.1, routing.YouAreArrived}},
			distance:  200,
			duration:  0.4,
		},
		{
			name:      "astar on duration",
			ids:       []common.DBID{1, 4},
			astar:     true,
			criterion: common.CostDuration,
			want:      []roadStep{{"Rue A", 0.2, routing.GoAhead}, {"Rue B", 0.1, routing.YouAreArrived}},
			distance:  300,
			duration:  0.52,
		},
		{
			name:      "intermediate step",
			ids:       []common.DBID{4, 3, 6},
			criterion: common.CostDistance,
			want:      []roadStep{{"Rue B", 0.1, routing.TurnRight}, {"Rue D", 0.1, routing.YouAreArrived}},
			distance:  200,
			duration:  0.32,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, g := load(t, plugins.RoadName)
			if err := p.Options().Set("astar", tc.astar); err != nil {
				t.Fatal(err)
			}
			r := newRequest(t, g, tc.ids...)
			r.AllowedTransportTypes = common.TransportCar
			if err := r.SetOptimizingCriterion(0, tc.criterion); err != nil {
				t.Fatal(err)
			}

			res := run(t, p, r)
			if len(res) != 1 {
				t.Fatalf("got %d roadmaps, want 1", len(res))
			}
			if diff := cmp.Diff(tc.want, roadSteps(t, res[0])); diff != "" {
				t.Errorf("steps mismatch (-want +got):\n%s", diff)
			}
			total := res[0].TotalCosts()
			if !near(total[common.CostDistance], tc.distance) || !near(total[common.CostDuration], tc.duration) {
				t.Errorf("total costs = %v, want distance %v duration %v", total, tc.distance, tc.duration)
			}
			if n, _ := p.Metrics()[plugin.MetricIterations].(int); n == 0 {
				t.Error("iterations metric not set")
			}
		})
	}
}

func TestRoadPath(t *testing.T) {
	p, g := load(t, plugins.RoadName)
	r := newRequest(t, g, 1, 4)
	res := run(t, p, r)

	var got []common.DBID
	for _, v := range res[0].Path {
		got = append(got, g.Road().Node(v.Road).DBID)
	}
	if diff := cmp.Diff([]common.DBID{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}

// nodeIDs lists the road nodes a roadmap goes through.
func nodeIDs(g *multimodal.Graph, rm routing.Roadmap) []common.DBID {
	var ids []common.DBID
	for _, v := range rm.Path {
		ids = append(ids, g.Road().Node(v.Road).DBID)
	}
	return ids
}

// turns reports whether ids contains the consecutive nodes a, b, c.
func turns(ids []common.DBID, a, b, c common.DBID) bool {
	for i := 2; i < len(ids); i++ {
		if ids[i-2] == a && ids[i-1] == b && ids[i] == c {
			return true
		}
	}
	return false
}

func TestRoadRestrictions(t *testing.T) {
	tests := []struct {
		name      string
		mode      common.DBID
		penalty   float64
		criterion common.CostID
		forbidden bool
		distance  float64
		duration  float64
	}{
		// section 10 then 13 goes through nodes 1, 2 and 5
		{"bus may not turn", common.TransportBus, 0, common.CostDistance, true, 400, 0.8},
		{"car may turn", common.TransportCar, 0, common.CostDistance, false, 200, 0.4},
		{"small penalty is paid", common.TransportCar, 0.1, common.CostDuration, false, 200, 0.5},
		{"large penalty is avoided", common.TransportCar, 1, common.CostDuration, true, 400, 0.8},
		{"penalty ignored on distance", common.TransportCar, 1, common.CostDistance, false, 200, 1.4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, g := load(t, plugins.RoadName)
			if tc.penalty > 0 {
				g.Road().Restrictions[0].Costs[common.TransportCar] = tc.penalty
			}
			if err := p.Options().Set("transport_type", int64(tc.mode)); err != nil {
				t.Fatal(err)
			}
			r := newRequest(t, g, 1, 5)
			r.AllowedTransportTypes = tc.mode
			if err := r.SetOptimizingCriterion(0, tc.criterion); err != nil {
				t.Fatal(err)
			}

			res := run(t, p, r)
			if len(res) != 1 {
				t.Fatalf("got %d roadmaps, want 1", len(res))
			}
			ids := nodeIDs(g, res[0])
			if turns(ids, 1, 2, 5) == tc.forbidden {
				t.Errorf("path %v, restricted turn taken = %v", ids, !tc.forbidden)
			}
			if ids[len(ids)-1] != 5 {
				t.Errorf("path %v does not end at node 5", ids)
			}
			total := res[0].TotalCosts()
			if !near(total[common.CostDistance], tc.distance) || !near(total[common.CostDuration], tc.duration) {
				t.Errorf("total costs = %v, want distance %v duration %v", total, tc.distance, tc.duration)
			}
		})
	}
}

func TestRoadRestrictionAcrossSteps(t *testing.T) {
	p, g := load(t, plugins.RoadName)
	if err := p.Options().Set("transport_type", int64(common.TransportBus)); err != nil {
		t.Fatal(err)
	}
	r := newRequest(t, g, 1, 2, 5)
	r.AllowedTransportTypes = common.TransportBus

	ids := nodeIDs(g, run(t, p, r)[0])
	if turns(ids, 1, 2, 5) {
		t.Errorf("path %v turns from section 10 onto 13", ids)
	}
}

func TestRoadAstarFastSections(t *testing.T) {
	// sections faster than any fixed bound must keep A* optimal
	speeds := map[common.DBID]float64{11: 130, 12: 1000, 13: 1000, 14: 1000, 15: 1000}
	durations := make(map[bool]float64)
	for _, astar := range []bool{false, true} {
		g := fixture.MustGraph()
		rg := g.Road()
		for _, e := range rg.Edges() {
			if v, ok := speeds[rg.Section(e).DBID]; ok {
				rg.Section(e).CarAverageSpeed = v
			}
		}
		p, _ := loadOn(t, plugins.RoadName, g)
		if err := p.Options().Set("astar", astar); err != nil {
			t.Fatal(err)
		}
		r := newRequest(t, g, 1, 4)
		r.AllowedTransportTypes = common.TransportCar
		if err := r.SetOptimizingCriterion(0, common.CostDuration); err != nil {
			t.Fatal(err)
		}
		durations[astar] = run(t, p, r)[0].TotalCosts()[common.CostDuration]
	}
	// 100m at 30km/h then 400m at 1000km/h around the block
	if !near(durations[false], 0.224) {
		t.Errorf("dijkstra duration = %v, want 0.224", durations[false])
	}
	if !near(durations[true], durations[false]) {
		t.Errorf("astar duration = %v, want %v", durations[true], durations[false])
	}
}

func TestRoadUnsupported(t *testing.T) {
	p, g := load(t, plugins.RoadName)
	ctx := context.Background()

	r := newRequest(t, g, 1, 4)
	r.AllowedTransportTypes = common.TransportTramway
	if err := p.PreProcess(ctx, r); !errors.Is(err, plugin.ErrUnsupported) {
		t.Errorf("PreProcess(tram only) error = %v", err)
	}

	r = newRequest(t, g, 1, 4)
	if err := r.SetOptimizingCriterion(0, common.CostPrice); err != nil {
		t.Fatal(err)
	}
	if err := p.PreProcess(ctx, r); !errors.Is(err, plugin.ErrUnsupported) {
		t.Errorf("PreProcess(price) error = %v", err)
	}
}

func TestPublicTransport(t *testing.T) {
	p, g := load(t, plugins.PublicTransportName)
	r := newRequest(t, g, 1, 4)
	if err := r.SetOptimizingCriterion(0, common.CostDuration); err != nil {
		t.Fatal(err)
	}

	res := run(t, p, r)
	if len(res) != 1 || len(res[0].Steps) != 1 {
		t.Fatalf("result = %+v", res)
	}
	step, ok := res[0].Steps[0].(*routing.PublicTransportStep)
	if !ok {
		t.Fatalf("step %T is not a public transport step", res[0].Steps[0])
	}
	if step.Network != fixture.Network || step.DepartureStop != fixture.StopA || step.ArrivalStop != fixture.StopB {
		t.Errorf("step = %+v", step)
	}
	if d, _ := step.Cost(common.CostDistance); !near(d, fixture.TramLength) {
		t.Errorf("distance = %v, want %v", d, fixture.TramLength)
	}
	if d, _ := step.Cost(common.CostDuration); !near(d, fixture.TramLength/25000*60) {
		t.Errorf("duration = %v", d)
	}
}

func TestPublicTransportStops(t *testing.T) {
	p, g := load(t, plugins.PublicTransportName)
	ctx := context.Background()

	// node 5 is more than 100m away from any stop
	if err := p.PreProcess(ctx, newRequest(t, g, 1, 5)); !errors.Is(err, plugin.ErrInvalidArgument) {
		t.Errorf("PreProcess(far destination) error = %v", err)
	}

	if err := p.Options().SetOptionFromString("destination_stop", "101"); err != nil {
		t.Fatal(err)
	}
	res := run(t, p, newRequest(t, g, 1, 5))
	if len(res) != 1 {
		t.Fatalf("got %d roadmaps, want 1", len(res))
	}

	if err := p.Options().SetOptionFromString("network", "7"); err != nil {
		t.Fatal(err)
	}
	if err := p.PreProcess(ctx, newRequest(t, g, 1, 4)); !errors.Is(err, plugin.ErrInvalidArgument) {
		t.Errorf("PreProcess(unknown network) error = %v", err)
	}
}

func TestMultimodal(t *testing.T) {
	p, g := load(t, plugins.MultimodalName)
	r := newRequest(t, g, 1, 4)
	if err := r.AddCriterion(common.CostDuration); err != nil {
		t.Fatal(err)
	}

	res := run(t, p, r)
	if len(res) != 2 {
		t.Fatalf("got %d roadmaps, want 2", len(res))
	}

	// shortest path rides the tram
	var kinds []routing.StepKind
	for _, s := range res[0].Steps {
		kinds = append(kinds, s.Kind())
	}
	want := []routing.StepKind{routing.GenericStepKind, routing.PublicTransportStepKind, routing.GenericStepKind}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("distance roadmap kinds mismatch (-want +got):\n%s", diff)
	}
	if d := res[0].TotalCosts()[common.CostDistance]; !near(d, 50+fixture.TramLength+50) {
		t.Errorf("distance = %v", d)
	}
	if gs, ok := res[0].Steps[0].(*routing.GenericStep); !ok || gs.FinalMode != common.TransportTramway {
		t.Errorf("first step = %+v", res[0].Steps[0])
	}

	// fastest path walks, boarding costs more than it saves
	kinds = kinds[:0]
	for _, s := range res[1].Steps {
		kinds = append(kinds, s.Kind())
	}
	want = []routing.StepKind{routing.RoadStepKind, routing.RoadStepKind, routing.RoadStepKind}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("duration roadmap kinds mismatch (-want +got):\n%s", diff)
	}
	if d := res[1].TotalCosts()[common.CostDuration]; !near(d, 300.0/5000*60) {
		t.Errorf("duration = %v", d)
	}
}

func TestMultimodalNetworkFilter(t *testing.T) {
	p, g := load(t, plugins.MultimodalName)
	r := newRequest(t, g, 1, 4)
	r.AllowedNetworks = []common.DBID{99}

	res := run(t, p, r)
	if len(res) != 1 {
		t.Fatalf("got %d roadmaps, want 1", len(res))
	}
	for _, s := range res[0].Steps {
		if s.Kind() != routing.RoadStepKind {
			t.Errorf("unexpected %s step with no network allowed", s.Kind())
		}
	}
	if d := res[0].TotalCosts()[common.CostDistance]; !near(d, 300) {
		t.Errorf("distance = %v", d)
	}
}

func TestDummy(t *testing.T) {
	p, g := load(t, plugins.DummyName)
	if err := p.Options().Set("verbose", true); err != nil {
		t.Fatal(err)
	}
	r := newRequest(t, g, 1, 4)
	r.Steps[0].Constraint = routing.TimeConstraint{Type: routing.ConstraintAfter}
	if res := run(t, p, r); len(res) != 0 {
		t.Errorf("got %d roadmaps, want none", len(res))
	}
}

func TestRegister(t *testing.T) {
	r := plugin.NewRegistry(testLogger(t))
	if err := plugins.Register(r); err != nil {
		t.Fatal(err)
	}
	want := []string{plugins.DummyName, plugins.MultimodalName, plugins.PublicTransportName, plugins.RoadName}
	if diff := cmp.Diff(want, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if err := plugins.Register(r); err == nil {
		t.Error("registering twice should fail")
	}
}
