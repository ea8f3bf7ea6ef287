// Package multimodal combines the road graph, public transport graphs and
// points of interest into a single graph.
package multimodal

import (
	"fmt"

	"tempus/common"
	"tempus/pt"
	"tempus/road"
)

type VertexType int

const (
	VertexRoad VertexType = iota + 1
	VertexPublicTransport
	VertexPOI
)

func (t VertexType) String() string {
	switch t {
	case VertexRoad:
		return "road"
	case VertexPublicTransport:
		return "pt"
	case VertexPOI:
		return "poi"
	}
	return "null"
}

// Vertex is a value type, two vertices are equal when they designate the same
// node, so it can be used as a map key.
type Vertex struct {
	Type    VertexType
	Road    road.Vertex
	Network common.DBID
	Stop    pt.Vertex
	POI     common.DBID
}

func RoadVertex(v road.Vertex) Vertex {
	return Vertex{Type: VertexRoad, Road: v}
}

func TransportVertex(network common.DBID, v pt.Vertex) Vertex {
	return Vertex{Type: VertexPublicTransport, Network: network, Stop: v}
}

func POIVertex(id common.DBID) Vertex {
	return Vertex{Type: VertexPOI, POI: id}
}

func (v Vertex) IsNull() bool {
	return v.Type == 0
}

func (v Vertex) String() string {
	switch v.Type {
	case VertexRoad:
		return fmt.Sprintf("road:%d", v.Road)
	case VertexPublicTransport:
		return fmt.Sprintf("pt:%d/%d", v.Network, v.Stop)
	case VertexPOI:
		return fmt.Sprintf("poi:%d", v.POI)
	}
	return "null"
}

type ConnectionType int

const (
	ConnectionUnknown ConnectionType = iota
	Road2Road
	Road2Transport
	Transport2Road
	Transport2Transport
	Road2POI
	POI2Road
)

var connectionNames = [...]string{"unknown", "road2road", "road2transport", "transport2road", "transport2transport", "road2poi", "poi2road"}

func (c ConnectionType) String() string {
	if c < 0 || int(c) >= len(connectionNames) {
		return connectionNames[0]
	}
	return connectionNames[c]
}

// Edge is identified by its end points.
type Edge struct {
	Source Vertex
	Target Vertex
}

// ConnectionType derives the kind of connection from the end points.
func (e Edge) ConnectionType() ConnectionType {
	switch {
	case e.Source.Type == VertexRoad && e.Target.Type == VertexRoad:
		return Road2Road
	case e.Source.Type == VertexRoad && e.Target.Type == VertexPublicTransport:
		return Road2Transport
	case e.Source.Type == VertexPublicTransport && e.Target.Type == VertexRoad:
		return Transport2Road
	case e.Source.Type == VertexPublicTransport && e.Target.Type == VertexPublicTransport:
		return Transport2Transport
	case e.Source.Type == VertexRoad && e.Target.Type == VertexPOI:
		return Road2POI
	case e.Source.Type == VertexPOI && e.Target.Type == VertexRoad:
		return POI2Road
	}
	return ConnectionUnknown
}

// Reversed swaps end points.
func (e Edge) Reversed() Edge {
	return Edge{Source: e.Target, Target: e.Source}
}

func (e Edge) String() string {
	return e.Source.String() + " -> " + e.Target.String()
}
