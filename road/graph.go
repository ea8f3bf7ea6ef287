// Package road holds the directed road network graph.
package road

import (
	"errors"
	"fmt"

	"tempus/common"
)

// Vertex and Edge are dense indices into Graph storage.
type (
	Vertex int
	Edge   int
)

const (
	NullVertex Vertex = -1
	NullEdge   Edge   = -1
)

var ErrNotFound = errors.New("not found")

type Node struct {
	DBID          common.DBID
	IsJunction    bool
	IsBifurcation bool
	Coordinates   common.Point3D
}

// Section is a road section traversed in one direction.
type Section struct {
	DBID            common.DBID
	RoadType        common.RoadType
	TransportTypes  common.DBID // allowed modes in this direction
	Length          float64     // meters
	CarSpeedLimit   float64     // km/h
	CarAverageSpeed float64     // km/h
	BusAverageSpeed float64     // km/h
	RoadName        string
	AddressLeft     string
	AddressRight    string
	Lane            int
	IsRoundabout    bool
	IsBridge        bool
	IsTunnel        bool
	IsRamp          bool
	IsTollway       bool
}

// Allows reports whether any mode in the mask may use the section.
func (s *Section) Allows(mask common.DBID) bool {
	return s.TransportTypes&mask != 0
}

type edgeData struct {
	source, target Vertex
	section        Section
}

// Graph is an adjacency list directed graph. Vertices and edges are never
// removed, so indices stay stable once assigned.
type Graph struct {
	nodes []Node
	edges []edgeData
	out   [][]Edge
	in    [][]Edge

	vertexByID map[common.DBID]Vertex
	edgeByID   map[common.DBID]Edge

	Restrictions []Restriction
}

func NewGraph() *Graph {
	return &Graph{
		vertexByID: make(map[common.DBID]Vertex),
		edgeByID:   make(map[common.DBID]Edge),
	}
}

// AddVertex appends a node, node database ids must be unique.
func (g *Graph) AddVertex(n Node) (Vertex, error) {
	if _, exists := g.vertexByID[n.DBID]; exists {
		return NullVertex, fmt.Errorf("duplicate road node %d", n.DBID)
	}
	v := Vertex(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	g.vertexByID[n.DBID] = v
	return v, nil
}

// AddEdge connects u to v. Both directions of a two way section share the
// same database id, EdgeFromID returns the first one added.
func (g *Graph) AddEdge(u, v Vertex, s Section) (Edge, error) {
	if !g.validVertex(u) || !g.validVertex(v) {
		return NullEdge, fmt.Errorf("road section %d: vertex out of range (%d -> %d)", s.DBID, u, v)
	}
	e := Edge(len(g.edges))
	g.edges = append(g.edges, edgeData{source: u, target: v, section: s})
	g.out[u] = append(g.out[u], e)
	g.in[v] = append(g.in[v], e)
	if _, exists := g.edgeByID[s.DBID]; !exists {
		g.edgeByID[s.DBID] = e
	}
	return e, nil
}

func (g *Graph) validVertex(v Vertex) bool {
	return v >= 0 && int(v) < len(g.nodes)
}

func (g *Graph) validEdge(e Edge) bool {
	return e >= 0 && int(e) < len(g.edges)
}

func (g *Graph) NumVertices() int {
	return len(g.nodes)
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

// Node returns vertex properties. The pointer stays valid until next AddVertex.
func (g *Graph) Node(v Vertex) *Node {
	return &g.nodes[v]
}

// Section returns edge properties. The pointer stays valid until next AddEdge.
func (g *Graph) Section(e Edge) *Section {
	return &g.edges[e].section
}

// Edge finds an edge going from u to v.
func (g *Graph) Edge(u, v Vertex) (Edge, bool) {
	if !g.validVertex(u) || !g.validVertex(v) {
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
	return NullVertex, fmt.Errorf("road node %d: %w", id, ErrNotFound)
}

func (g *Graph) EdgeFromID(id common.DBID) (Edge, error) {
	if e, ok := g.edgeByID[id]; ok {
		return e, nil
	}
	return NullEdge, fmt.Errorf("road section %d: %w", id, ErrNotFound)
}

// Vertices returns every vertex index.
func (g *Graph) Vertices() []Vertex {
	vs := make([]Vertex, len(g.nodes))
	for i := range vs {
		vs[i] = Vertex(i)
	}
	return vs
}

// Edges returns every edge index.
func (g *Graph) Edges() []Edge {
	es := make([]Edge, len(g.edges))
	for i := range es {
		es[i] = Edge(i)
	}
	return es
}

// CheckConsistency verifies sections are usable.
func (g *Graph) CheckConsistency() error {
	var checkers []common.Checker
	for e := range g.edges {
		checkers = append(checkers, sectionCheck{g: g, e: Edge(e)})
	}
	for i := range g.Restrictions {
		checkers = append(checkers, restrictionCheck{g: g, r: &g.Restrictions[i]})
	}
	return common.CheckAll(checkers...)
}

type sectionCheck struct {
	g *Graph
	e Edge
}

func (c sectionCheck) CheckConsistency() error {
	s := c.g.Section(c.e)
	if s.Length <= 0 {
		return fmt.Errorf("road section %d: non positive length %f: %w", s.DBID, s.Length, common.ErrInconsistent)
	}
	if s.RoadType != 0 && !s.RoadType.IsValid() {
		return fmt.Errorf("road section %d: unknown road type %d: %w", s.DBID, s.RoadType, common.ErrInconsistent)
	}
	return nil
}
