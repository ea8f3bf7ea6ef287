package multimodal

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"tempus/common"
	"tempus/pt"
	"tempus/road"
)

var ErrNotFound = errors.New("not found")

// Graph is a read mostly view over every network. It is built once and is
// safe for concurrent readers as long as the network selection is not changed.
type Graph struct {
	road           *road.Graph
	pts            map[common.DBID]*pt.Graph
	pois           map[common.DBID]*POI
	transportTypes common.TransportTypes
	roadTypes      map[common.RoadType]string

	// nil means every network is visible
	selection map[common.DBID]bool

	// attachments indexed by road section database id
	stopsOnSection map[common.DBID][]Vertex
	poisOnSection  map[common.DBID][]common.DBID
}

// NewGraph wraps a road graph. Nil transport types select the default table.
func NewGraph(rg *road.Graph, tt common.TransportTypes) *Graph {
	if tt == nil {
		tt = common.DefaultTransportTypes()
	}
	return &Graph{
		road:           rg,
		pts:            make(map[common.DBID]*pt.Graph),
		pois:           make(map[common.DBID]*POI),
		transportTypes: tt,
		roadTypes:      make(map[common.RoadType]string),
		stopsOnSection: make(map[common.DBID][]Vertex),
		poisOnSection:  make(map[common.DBID][]common.DBID),
	}
}

func (g *Graph) Road() *road.Graph {
	return g.road
}

func (g *Graph) TransportTypes() common.TransportTypes {
	return g.transportTypes
}

func (g *Graph) RoadTypes() map[common.RoadType]string {
	return g.roadTypes
}

func (g *Graph) SetRoadType(t common.RoadType, name string) {
	g.roadTypes[t] = name
}

// AddPublicTransport attaches a network graph, every stop must reference an
// existing road section.
func (g *Graph) AddPublicTransport(pg *pt.Graph) error {
	id := pg.Network.DBID
	if _, exists := g.pts[id]; exists {
		return fmt.Errorf("duplicate network %d", id)
	}
	for _, v := range pg.Vertices() {
		s := pg.Stop(v)
		e, err := g.road.EdgeFromID(s.RoadSection)
		if err != nil {
			return fmt.Errorf("network %d, stop %d: %w", id, s.DBID, err)
		}
		s.RoadEdge = e
		g.stopsOnSection[s.RoadSection] = append(g.stopsOnSection[s.RoadSection], TransportVertex(id, v))
	}
	g.pts[id] = pg
	return nil
}

func (g *Graph) AddPOI(p POI) error {
	if _, exists := g.pois[p.DBID]; exists {
		return fmt.Errorf("duplicate poi %d", p.DBID)
	}
	e, err := g.road.EdgeFromID(p.RoadSection)
	if err != nil {
		return fmt.Errorf("poi %d: %w", p.DBID, err)
	}
	p.RoadEdge = e
	g.pois[p.DBID] = &p
	g.poisOnSection[p.RoadSection] = append(g.poisOnSection[p.RoadSection], p.DBID)
	return nil
}

// NetworkIDs returns identifiers of every loaded network in ascending order.
func (g *Graph) NetworkIDs() []common.DBID {
	ids := make([]common.DBID, 0, len(g.pts))
	for id := range g.pts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (g *Graph) Network(id common.DBID) (pt.Network, bool) {
	if pg, ok := g.pts[id]; ok {
		return pg.Network, true
	}
	return pt.Network{}, false
}

func (g *Graph) PublicTransport(id common.DBID) (*pt.Graph, bool) {
	pg, ok := g.pts[id]
	return pg, ok
}

func (g *Graph) POI(id common.DBID) (*POI, bool) {
	p, ok := g.pois[id]
	return p, ok
}

// POIIDs returns identifiers of every POI in ascending order.
func (g *Graph) POIIDs() []common.DBID {
	ids := make([]common.DBID, 0, len(g.pois))
	for id := range g.pois {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SelectPublicTransports restricts visible networks. Empty selection makes
// every network visible again.
func (g *Graph) SelectPublicTransports(ids []common.DBID) error {
	if len(ids) == 0 {
		g.selection = nil
		return nil
	}
	sel := make(map[common.DBID]bool, len(ids))
	for _, id := range ids {
		if _, ok := g.pts[id]; !ok {
			return fmt.Errorf("network %d: %w", id, ErrNotFound)
		}
		sel[id] = true
	}
	g.selection = sel
	return nil
}

// PublicTransportSelection returns visible networks in ascending order.
func (g *Graph) PublicTransportSelection() []common.DBID {
	var ids []common.DBID
	for _, id := range g.NetworkIDs() {
		if g.selected(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (g *Graph) selected(network common.DBID) bool {
	return g.selection == nil || g.selection[network]
}

// Valid reports whether a vertex exists and is visible.
func (g *Graph) Valid(v Vertex) bool {
	switch v.Type {
	case VertexRoad:
		return v.Road >= 0 && int(v.Road) < g.road.NumVertices()
	case VertexPublicTransport:
		pg, ok := g.pts[v.Network]
		return ok && g.selected(v.Network) && v.Stop >= 0 && int(v.Stop) < pg.NumVertices()
	case VertexPOI:
		_, ok := g.pois[v.POI]
		return ok
	}
	return false
}

// Vertices lists road vertices, then stops of visible networks, then POIs.
func (g *Graph) Vertices() []Vertex {
	vs := make([]Vertex, 0, g.NumVertices())
	for _, v := range g.road.Vertices() {
		vs = append(vs, RoadVertex(v))
	}
	for _, id := range g.PublicTransportSelection() {
		for _, v := range g.pts[id].Vertices() {
			vs = append(vs, TransportVertex(id, v))
		}
	}
	for _, id := range g.POIIDs() {
		vs = append(vs, POIVertex(id))
	}
	return vs
}

func (g *Graph) NumVertices() int {
	n := g.road.NumVertices() + len(g.pois)
	for _, id := range g.PublicTransportSelection() {
		n += g.pts[id].NumVertices()
	}
	return n
}

// Edges lists every edge in vertex order.
func (g *Graph) Edges() []Edge {
	var es []Edge
	for _, v := range g.Vertices() {
		es = append(es, g.OutEdges(v)...)
	}
	return es
}

func (g *Graph) NumEdges() int {
	n := 0
	for _, v := range g.Vertices() {
		n += len(g.OutEdges(v))
	}
	return n
}

// incidentSections returns database ids of road sections touching v, in
// adjacency order and without duplicates.
func (g *Graph) incidentSections(v road.Vertex) []common.DBID {
	var ids []common.DBID
	add := func(e road.Edge) {
		id := g.road.Section(e).DBID
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, e := range g.road.OutEdges(v) {
		add(e)
	}
	for _, e := range g.road.InEdges(v) {
		add(e)
	}
	return ids
}

// attached returns stops of visible networks and POIs located on sections
// incident to road vertex v.
func (g *Graph) attached(v road.Vertex) []Vertex {
	var out []Vertex
	for _, id := range g.incidentSections(v) {
		for _, s := range g.stopsOnSection[id] {
			if g.selected(s.Network) {
				out = append(out, s)
			}
		}
		for _, p := range g.poisOnSection[id] {
			out = append(out, POIVertex(p))
		}
	}
	return out
}

// sectionEnds returns distinct end points of road edge e.
func (g *Graph) sectionEnds(e road.Edge) []Vertex {
	s, t := g.road.Source(e), g.road.Target(e)
	if s == t {
		return []Vertex{RoadVertex(s)}
	}
	return []Vertex{RoadVertex(s), RoadVertex(t)}
}

// OutEdges returns edges leaving v. Invisible or unknown vertices have none.
func (g *Graph) OutEdges(v Vertex) []Edge {
	if !g.Valid(v) {
		return nil
	}
	var out []Edge
	switch v.Type {
	case VertexRoad:
		for _, e := range g.road.OutEdges(v.Road) {
			out = append(out, Edge{Source: v, Target: RoadVertex(g.road.Target(e))})
		}
		for _, a := range g.attached(v.Road) {
			out = append(out, Edge{Source: v, Target: a})
		}
	case VertexPublicTransport:
		pg := g.pts[v.Network]
		for _, e := range pg.OutEdges(v.Stop) {
			out = append(out, Edge{Source: v, Target: TransportVertex(v.Network, pg.Target(e))})
		}
		for _, r := range g.sectionEnds(pg.Stop(v.Stop).RoadEdge) {
			out = append(out, Edge{Source: v, Target: r})
		}
	case VertexPOI:
		for _, r := range g.sectionEnds(g.pois[v.POI].RoadEdge) {
			out = append(out, Edge{Source: v, Target: r})
		}
	}
	return out
}

// InEdges returns edges entering v.
func (g *Graph) InEdges(v Vertex) []Edge {
	if !g.Valid(v) {
		return nil
	}
	var in []Edge
	switch v.Type {
	case VertexRoad:
		for _, e := range g.road.InEdges(v.Road) {
			in = append(in, Edge{Source: RoadVertex(g.road.Source(e)), Target: v})
		}
		for _, a := range g.attached(v.Road) {
			in = append(in, Edge{Source: a, Target: v})
		}
	case VertexPublicTransport:
		pg := g.pts[v.Network]
		for _, e := range pg.InEdges(v.Stop) {
			in = append(in, Edge{Source: TransportVertex(v.Network, pg.Source(e)), Target: v})
		}
		for _, r := range g.sectionEnds(pg.Stop(v.Stop).RoadEdge) {
			in = append(in, Edge{Source: r, Target: v})
		}
	case VertexPOI:
		for _, r := range g.sectionEnds(g.pois[v.POI].RoadEdge) {
			in = append(in, Edge{Source: r, Target: v})
		}
	}
	return in
}

// Edge looks up the edge from u to v.
func (g *Graph) Edge(u, v Vertex) (Edge, bool) {
	for _, e := range g.OutEdges(u) {
		if e.Target == v {
			return e, true
		}
	}
	return Edge{}, false
}

// RoadEdge returns the road edge underlying a Road2Road edge.
func (g *Graph) RoadEdge(e Edge) (road.Edge, bool) {
	if e.ConnectionType() != Road2Road {
		return road.NullEdge, false
	}
	return g.road.Edge(e.Source.Road, e.Target.Road)
}

// PublicTransportEdge returns the network edge underlying a
// Transport2Transport edge.
func (g *Graph) PublicTransportEdge(e Edge) (pt.Edge, bool) {
	if e.ConnectionType() != Transport2Transport || e.Source.Network != e.Target.Network {
		return pt.NullEdge, false
	}
	pg, ok := g.pts[e.Source.Network]
	if !ok {
		return pt.NullEdge, false
	}
	return pg.Edge(e.Source.Stop, e.Target.Stop)
}

// Stop returns the stop designated by a public transport vertex.
func (g *Graph) Stop(v Vertex) (*pt.Stop, bool) {
	if v.Type != VertexPublicTransport || !g.Valid(v) {
		return nil, false
	}
	return g.pts[v.Network].Stop(v.Stop), true
}

// Coordinates returns the position of a vertex as loaded with the graph.
func (g *Graph) Coordinates(v Vertex) (common.Point3D, error) {
	if !g.Valid(v) {
		return common.Point3D{}, fmt.Errorf("vertex %s: %w", v, ErrNotFound)
	}
	switch v.Type {
	case VertexRoad:
		return g.road.Node(v.Road).Coordinates, nil
	case VertexPublicTransport:
		return g.pts[v.Network].Stop(v.Stop).Coordinates, nil
	default:
		return g.pois[v.POI].Coordinates, nil
	}
}

// CheckConsistency verifies every part of the graph.
func (g *Graph) CheckConsistency() error {
	err := multierr.Combine(g.transportTypes.CheckConsistency(), g.road.CheckConsistency())
	for _, id := range g.NetworkIDs() {
		err = multierr.Append(err, g.pts[id].CheckConsistency())
	}
	for _, id := range g.POIIDs() {
		err = multierr.Append(err, g.pois[id].CheckConsistency())
	}
	return err
}
