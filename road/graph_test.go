package road

import (
	"errors"
	"math"
	"testing"

	"tempus/common"
)

// square builds 1 -> 2 -> 3 -> 4 plus a two way shortcut 1 <-> 3.
func square(t *testing.T) *Graph {
	t.Helper()

	g := NewGraph()
	for id := common.DBID(1); id <= 4; id++ {
		if _, err := g.AddVertex(Node{DBID: id}); err != nil {
			t.Fatalf("AddVertex(%d) error = %v", id, err)
		}
	}
	add := func(id common.DBID, from, to common.DBID, length float64) {
		u, _ := g.VertexFromID(from)
		v, _ := g.VertexFromID(to)
		if _, err := g.AddEdge(u, v, Section{DBID: id, Length: length, TransportTypes: common.TransportCar}); err != nil {
			t.Fatalf("AddEdge(%d) error = %v", id, err)
		}
	}
	add(10, 1, 2, 100)
	add(11, 2, 3, 100)
	add(12, 3, 4, 100)
	add(13, 1, 3, 150)
	add(13, 3, 1, 150)
	return g
}

func TestGraph(t *testing.T) {
	g := square(t)

	if g.NumVertices() != 4 || g.NumEdges() != 5 {
		t.Fatalf("graph size = %d/%d", g.NumVertices(), g.NumEdges())
	}

	v1, _ := g.VertexFromID(1)
	v3, _ := g.VertexFromID(3)

	if n := len(g.OutEdges(v1)); n != 2 {
		t.Errorf("OutEdges(1) = %d, want 2", n)
	}
	if n := len(g.InEdges(v3)); n != 2 {
		t.Errorf("InEdges(3) = %d, want 2", n)
	}

	e, ok := g.Edge(v3, v1)
	if !ok {
		t.Fatal("Edge(3, 1) not found")
	}
	if g.Section(e).DBID != 13 || g.Source(e) != v3 || g.Target(e) != v1 {
		t.Errorf("Edge(3, 1) = %+v", g.Section(e))
	}

	if first, _ := g.EdgeFromID(13); g.Source(first) != v1 {
		t.Error("EdgeFromID() must return the first direction added")
	}

	if _, err := g.VertexFromID(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("VertexFromID(99) error = %v", err)
	}
	if _, err := g.AddVertex(Node{DBID: 1}); err == nil {
		t.Error("duplicate node must fail")
	}
	if _, err := g.AddEdge(0, 42, Section{DBID: 99}); err == nil {
		t.Error("edge to unknown vertex must fail")
	}
}

func TestCheckConsistency(t *testing.T) {
	g := square(t)
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency() = %v", err)
	}

	g.Section(0).Length = 0
	if err := g.CheckConsistency(); !errors.Is(err, common.ErrInconsistent) {
		t.Errorf("CheckConsistency() = %v, want ErrInconsistent", err)
	}
}

func TestRestrictions(t *testing.T) {
	g := square(t)
	e10, _ := g.EdgeFromID(10)
	e11, _ := g.EdgeFromID(11)
	e12, _ := g.EdgeFromID(12)

	g.Restrictions = append(g.Restrictions, Restriction{
		DBID:  1,
		Edges: []Edge{e10, e11},
		Costs: map[common.DBID]float64{common.TransportCar: math.Inf(1), common.TransportBus: 30},
	})
	if err := g.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency() = %v", err)
	}

	if !g.ForbiddenMovement(e10, e11, common.TransportCar) {
		t.Error("car movement 10 -> 11 must be forbidden")
	}
	if g.ForbiddenMovement(e10, e11, common.TransportBus) {
		t.Error("bus movement 10 -> 11 is only penalized")
	}
	if c := g.Restrictions[0].Cost(common.TransportBus); c != 30 {
		t.Errorf("bus penalty = %f", c)
	}
	if c := g.MovementCost(e10, e11, common.TransportBus); c != 30 {
		t.Errorf("MovementCost(bus) = %f, want 30", c)
	}
	if c := g.MovementCost(e10, e11, common.TransportPedestrial); c != 0 {
		t.Errorf("MovementCost(pedestrian) = %f, want 0", c)
	}
	if g.ForbiddenMovement(e11, e12, common.TransportCar) {
		t.Error("movement 11 -> 12 is not restricted")
	}

	g.Restrictions = append(g.Restrictions, Restriction{DBID: 2, Edges: []Edge{e10, e12}})
	if err := g.CheckConsistency(); !errors.Is(err, common.ErrInconsistent) {
		t.Errorf("non adjacent restriction accepted: %v", err)
	}
}
