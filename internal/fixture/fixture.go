// Package fixture provides a small multimodal network shared by tests.
//
//	     5 ---- 6
//	   / |      |
//	  1 -2 ---- 3 -- 4
//
// Sections 10 (1-2), 11 (2-3), 12 (3-4), 13 (2-5), 14 (5-6), 15 (6-3) are two
// way and open to every mode, 16 (1-5) is a 300m pedestrian path. Buses may
// not turn from 10 onto 13. Network 1 runs between stop 100 (on section 10)
// and stop 101 (on section 12), 180m apart. POI 1000 is a car park on section 11.
package fixture

import (
	"fmt"
	"math"
	"strings"

	"tempus/common"
	"tempus/multimodal"
	"tempus/pt"
	"tempus/road"
)

const (
	Network common.DBID = 1
	StopA   common.DBID = 100
	StopB   common.DBID = 101
	CarPark common.DBID = 1000

	Restriction common.DBID = 1

	// length of tram sections, shorter than the road between both stops
	TramLength = 180.0
)

type node struct {
	id   common.DBID
	x, y float64
}

type section struct {
	id       common.DBID
	from, to common.DBID
	length   float64
	name     string
	ft, tf   common.DBID
	speed    float64
}

const allModes = common.TransportCar | common.TransportPedestrial | common.TransportCycle | common.TransportBus

var (
	nodes = []node{
		{1, 0, 0}, {2, 100, 0}, {3, 200, 0}, {4, 300, 0}, {5, 100, 100}, {6, 200, 100},
	}
	sections = []section{
		{10, 1, 2, 100, "Rue A", allModes, allModes, 30},
		{11, 2, 3, 100, "Rue A", allModes, allModes, 30},
		{12, 3, 4, 100, "Rue B", allModes, allModes, 50},
		{13, 2, 5, 100, "Rue C", allModes, allModes, 30},
		{14, 5, 6, 100, "Rue C", allModes, allModes, 30},
		{15, 6, 3, 100, "Rue D", allModes, allModes, 30},
		{16, 1, 5, 300, "Allee", common.TransportPedestrial, common.TransportPedestrial, 0},
	}
)

// Graph builds the network in memory.
func Graph() (*multimodal.Graph, error) {
	rg := road.NewGraph()
	for _, n := range nodes {
		if _, err := rg.AddVertex(road.Node{DBID: n.id, Coordinates: common.Point3D{X: n.x, Y: n.y}}); err != nil {
			return nil, err
		}
	}
	for _, s := range sections {
		u, _ := rg.VertexFromID(s.from)
		v, _ := rg.VertexFromID(s.to)
		sec := road.Section{
			DBID:            s.id,
			RoadType:        common.RoadTypeStreet,
			Length:          s.length,
			RoadName:        s.name,
			CarSpeedLimit:   s.speed,
			CarAverageSpeed: s.speed,
			BusAverageSpeed: s.speed,
		}
		if s.ft != 0 {
			sec.TransportTypes = s.ft
			if _, err := rg.AddEdge(u, v, sec); err != nil {
				return nil, err
			}
		}
		if s.tf != 0 {
			sec.TransportTypes = s.tf
			if _, err := rg.AddEdge(v, u, sec); err != nil {
				return nil, err
			}
		}
	}

	e10, _ := rg.EdgeFromID(10)
	e13, _ := rg.EdgeFromID(13)
	rg.Restrictions = append(rg.Restrictions, road.Restriction{
		DBID:  Restriction,
		Edges: []road.Edge{e10, e13},
		Costs: map[common.DBID]float64{common.TransportBus: math.Inf(1)},
	})

	g := multimodal.NewGraph(rg, nil)
	for t, name := range map[common.RoadType]string{common.RoadTypeStreet: "street", common.RoadTypeOther: "other"} {
		g.SetRoadType(t, name)
	}

	pg := pt.NewGraph(pt.Network{DBID: Network, Name: "tram", ProvidedTransportTypes: common.TransportTramway})
	a, err := pg.AddVertex(pt.Stop{DBID: StopA, Name: "Stop A", RoadSection: 10, Abscissa: 0.5, Coordinates: common.Point3D{X: 50}})
	if err != nil {
		return nil, err
	}
	b, err := pg.AddVertex(pt.Stop{DBID: StopB, Name: "Stop B", RoadSection: 12, Abscissa: 0.5, Coordinates: common.Point3D{X: 250}})
	if err != nil {
		return nil, err
	}
	if _, err := pg.AddEdge(a, b, pt.Section{Network: Network, Length: TramLength}); err != nil {
		return nil, err
	}
	if _, err := pg.AddEdge(b, a, pt.Section{Network: Network, Length: TramLength}); err != nil {
		return nil, err
	}
	if err := g.AddPublicTransport(pg); err != nil {
		return nil, err
	}

	if err := g.AddPOI(multimodal.POI{
		DBID:                  CarPark,
		Type:                  multimodal.POICarPark,
		Name:                  "Parking",
		ParkingTransportTypes: common.TransportCar,
		RoadSection:           11,
		Abscissa:              0.5,
		Coordinates:           common.Point3D{X: 150},
	}); err != nil {
		return nil, err
	}
	return g, nil
}

// MustGraph is Graph for tests which cannot fail gracefully.
func MustGraph() *multimodal.Graph {
	g, err := Graph()
	if err != nil {
		panic(fmt.Sprintf("fixture graph: %v", err))
	}
	return g
}

// Statements returns SQL inserting the network into tables of the given
// schema (empty for none), tables must exist already.
func Statements(schema string) []string {
	p := ""
	if schema != "" {
		p = schema + "."
	}
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	for _, t := range common.DefaultTransportTypes() {
		add("INSERT INTO %stransport_type (id, parent_id, ttname, need_parking, need_station, need_return, need_network) VALUES (%d, %d, '%s', %d, %d, %d, %d)",
			p, t.ID, t.ParentID, t.Name, b2i(t.NeedParking), b2i(t.NeedStation), b2i(t.NeedReturn), b2i(t.NeedNetwork))
	}
	add("INSERT INTO %sroad_type (id, rtname) VALUES (%d, 'street'), (%d, 'other')", p, common.RoadTypeStreet, common.RoadTypeOther)
	for _, n := range nodes {
		add("INSERT INTO %sroad_node (id, junction, bifurcation, x, y, z) VALUES (%d, 0, 0, %g, %g, 0)", p, n.id, n.x, n.y)
	}
	for _, s := range sections {
		add("INSERT INTO %sroad_section (id, road_type, node_from, node_to, transport_type_ft, transport_type_tf, length, car_speed_limit, car_average_speed, bus_average_speed, road_name, address_left_side, address_right_side, lane, roundabout, bridge, tunnel, ramp, tollway) VALUES (%d, %d, %d, %d, %d, %d, %g, %g, %g, %g, '%s', NULL, NULL, 1, 0, 0, 0, 0, 0)",
			p, s.id, common.RoadTypeStreet, s.from, s.to, s.ft, s.tf, s.length, s.speed, s.speed, s.speed, strings.ReplaceAll(s.name, "'", "''"))
	}
	add("INSERT INTO %sroad_restriction (id, sections) VALUES (%d, '{10,13}')", p, Restriction)
	add("INSERT INTO %sroad_restriction_time_penalty (restriction_id, period_id, traffic_rules, time_value) VALUES (%d, 0, %d, NULL)", p, Restriction, common.TransportBus)
	add("INSERT INTO %spt_network (id, pnname, provided_transport_types) VALUES (%d, 'tram', %d)", p, Network, common.TransportTramway)
	add("INSERT INTO %spt_stop (id, psname, location_type, parent_station, road_section_id, zone_id, abscissa_road_section, x, y, z) VALUES (%d, 'Stop A', 0, NULL, 10, 0, 0.5, 50, 0, 0)", p, StopA)
	add("INSERT INTO %spt_stop (id, psname, location_type, parent_station, road_section_id, zone_id, abscissa_road_section, x, y, z) VALUES (%d, 'Stop B', 0, NULL, 12, 0, 0.5, 250, 0, 0)", p, StopB)
	add("INSERT INTO %spt_section (network_id, stop_from, stop_to, length) VALUES (%d, %d, %d, %g), (%d, %d, %d, %g)", p, Network, StopA, StopB, TramLength, Network, StopB, StopA, TramLength)
	add("INSERT INTO %spoi (id, poi_type, pname, parking_transport_type, road_section_id, abscissa_road_section, x, y, z) VALUES (%d, %d, 'Parking', %d, 11, 0.5, 150, 0, 0)",
		p, CarPark, multimodal.POICarPark, common.TransportCar)
	return out
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
