// Package pt models public transport networks and their timetables.
package pt

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"tempus/common"
	"tempus/road"
)

type (
	Vertex int
	Edge   int
)

const (
	NullVertex Vertex = -1
	NullEdge   Edge   = -1
)

var ErrNotFound = errors.New("not found")

type Network struct {
	DBID                   common.DBID
	Name                   string
	ProvidedTransportTypes common.DBID
}

// Stop is a public transport stop attached to a road section.
type Stop struct {
	DBID          common.DBID
	Name          string
	IsStation     bool
	ParentStation common.DBID // 0 when none
	RoadSection   common.DBID
	RoadEdge      road.Edge
	Abscissa      float64 // position on the road section, 0..1
	ZoneID        int
	Coordinates   common.Point3D
}

// CheckConsistency implements common.Checker.
func (s Stop) CheckConsistency() error {
	if s.RoadSection == 0 {
		return fmt.Errorf("pt stop %d: no road section: %w", s.DBID, common.ErrInconsistent)
	}
	if s.Abscissa < 0 || s.Abscissa > 1 {
		return fmt.Errorf("pt stop %d: abscissa %f out of [0, 1]: %w", s.DBID, s.Abscissa, common.ErrInconsistent)
	}
	return nil
}

// Section links two consecutive stops of a network.
type Section struct {
	Network common.DBID
	Length  float64 // meters
}

type edgeData struct {
	source, target Vertex
	section        Section
}

// Graph is the stop graph of one network.
type Graph struct {
	Network   Network
	Timetable *Timetable

	stops []Stop
	edges []edgeData
	out   [][]Edge
	in    [][]Edge

	vertexByID map[common.DBID]Vertex
}

func NewGraph(n Network) *Graph {
	return &Graph{Network: n, Timetable: NewTimetable(), vertexByID: make(map[common.DBID]Vertex)}
}

func (g *Graph) AddVertex(s Stop) (Vertex, error) {
	if _, exists := g.vertexByID[s.DBID]; exists {
		return NullVertex, fmt.Errorf("network %d: duplicate stop %d", g.Network.DBID, s.DBID)
	}
	v := Vertex(len(g.stops))
	g.stops = append(g.stops, s)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.vertexByID[s.DBID] = v
	return v, nil
}

func (g *Graph) AddEdge(u, v Vertex, s Section) (Edge, error) {
	if u < 0 || int(u) >= len(g.stops) || v < 0 || int(v) >= len(g.stops) {
		return NullEdge, fmt.Errorf("network %d: stop index out of range (%d -> %d)", g.Network.DBID, u, v)
	}
	e := Edge(len(g.edges))
	g.edges = append(g.edges, edgeData{source: u, target: v, section: s})
	g.out[u] = append(g.out[u], e)
	g.in[v] = append(g.in[v], e)
	return e, nil
}

func (g *Graph) NumVertices() int {
	return len(g.stops)
}

func (g *Graph) NumEdges() int {
	return len(g.edges)
}

func (g *Graph) Source(e Edge) Vertex {
	return g.edges[e].source
}

func (g *Graph) Target(e Edge) Vertex {
	return g.edges[e].target
}

func (g *Graph) OutEdges(v Vertex) []Edge {
	return g.out[v]
}

func (g *Graph) InEdges(v Vertex) []Edge {
	return g.in[v]
}

func (g *Graph) Stop(v Vertex) *Stop {
	return &g.stops[v]
}

func (g *Graph) Section(e Edge) *Section {
	return &g.edges[e].section
}

func (g *Graph) Edge(u, v Vertex) (Edge, bool) {
	if u < 0 || int(u) >= len(g.stops) {
		return NullEdge, false
	}
	for _, e := range g.out[u] {
		if g.edges[e].target == v {
			return e, true
		}
	}
	return NullEdge, false
}

func (g *Graph) VertexFromID(id common.DBID) (Vertex, error) {
	if v, ok := g.vertexByID[id]; ok {
		return v, nil
	}
	return NullVertex, fmt.Errorf("network %d, stop %d: %w", g.Network.DBID, id, ErrNotFound)
}

func (g *Graph) Vertices() []Vertex {
	vs := make([]Vertex, len(g.stops))
	for i := range vs {
		vs[i] = Vertex(i)
	}
	return vs
}

func (g *Graph) Edges() []Edge {
	es := make([]Edge, len(g.edges))
	for i := range es {
		es[i] = Edge(i)
	}
	return es
}

// CheckConsistency verifies stops and station hierarchy.
func (g *Graph) CheckConsistency() error {
	checkers := make([]common.Checker, 0, len(g.stops))
	for _, s := range g.stops {
		checkers = append(checkers, s)
	}
	if g.Timetable != nil {
		checkers = append(checkers, g.Timetable)
	}
	err := common.CheckAll(checkers...)
	for _, s := range g.stops {
		if s.ParentStation == 0 {
			continue
		}
		// parent stations served by no section of this network are not loaded
		pv, perr := g.VertexFromID(s.ParentStation)
		if perr == nil && !g.stops[pv].IsStation {
			err = multierr.Append(err, fmt.Errorf("pt stop %d: parent %d is not a station: %w", s.DBID, s.ParentStation, common.ErrInconsistent))
		}
	}
	return err
}
