// Package importer loads the multimodal graph from a database.
package importer

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"tempus/common"
	"tempus/db"
	"tempus/multimodal"
	"tempus/pt"
	"tempus/road"
	"tempus/utils/timer"
)

// Querier is what the importer needs from a database connection.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (*db.Result, error)
}

// ProgressFunc receives the completed fraction (0..1) of an import.
type ProgressFunc func(fraction float64, finished bool)

type Options struct {
	Schema string
	// Timetable also loads calendars, routes, trips and transfers.
	Timetable bool
	Progress  ProgressFunc
}

type importer struct {
	q    Querier
	opts Options
	log  *zap.Logger

	rg       *road.Graph
	g        *multimodal.Graph
	networks map[common.DBID]*pt.Graph
}

type phase struct {
	name string
	run  func(context.Context) error
}

// Import reads the whole graph. Any dangling reference aborts the import.
func Import(ctx context.Context, q Querier, opts Options, log *zap.Logger) (*multimodal.Graph, error) {
	if log == nil {
		log = zap.NewNop()
	}
	im := &importer{
		q:        q,
		opts:     opts,
		log:      log.Named("importer"),
		rg:       road.NewGraph(),
		networks: make(map[common.DBID]*pt.Graph),
	}

	phases := []phase{
		{"transport types", im.transportTypes},
		{"road types", im.roadTypes},
		{"road nodes", im.roadNodes},
		{"road sections", im.roadSections},
		{"road restrictions", im.roadRestrictions},
		{"public transport networks", im.ptNetworks},
		{"public transport stops", im.ptStops},
		{"public transport sections", im.ptSections},
		{"points of interest", im.pois},
	}
	if opts.Timetable {
		phases = append(phases, phase{"timetables", im.timetables})
	}

	t := timer.New()
	for i, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.run(ctx); err != nil {
			return nil, fmt.Errorf("during extraction of %s: %w", p.name, err)
		}
		im.log.Debug("Phase completed", zap.String("phase", p.name), zap.Float64("elapsed_s", t.Elapsed()))
		if opts.Progress != nil {
			opts.Progress(float64(i+1)/float64(len(phases)), i == len(phases)-1)
		}
	}
	im.log.Info("Graph imported",
		zap.Int("road_vertices", im.rg.NumVertices()),
		zap.Int("road_edges", im.rg.NumEdges()),
		zap.Int("networks", len(im.networks)),
		zap.Float64("elapsed_s", t.Elapsed()))
	return im.g, nil
}

func (im *importer) query(ctx context.Context, format string, tables ...any) (*db.Result, error) {
	qualified := make([]any, len(tables))
	for i, t := range tables {
		qualified[i] = qualify(im.opts.Schema, t.(string))
	}
	return im.q.Exec(ctx, fmt.Sprintf(format, qualified...))
}

func (im *importer) transportTypes(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, parent_id, ttname, need_parking, need_station, need_return, need_network FROM %s ORDER BY id", "transport_type")
	if err != nil {
		return err
	}
	var tt common.TransportTypes
	if res.Size() > 0 {
		tt = make(common.TransportTypes, res.Size())
	}
	for _, row := range res.Rows() {
		var t common.TransportType
		if err := db.ScanRow(row, &t.ID, &t.ParentID, &t.Name, &t.NeedParking, &t.NeedStation, &t.NeedReturn, &t.NeedNetwork); err != nil {
			return err
		}
		if err := t.CheckConsistency(); err != nil {
			return err
		}
		tt[t.ID] = t
	}
	// nil selects the default table
	im.g = multimodal.NewGraph(im.rg, tt)
	return nil
}

func (im *importer) roadTypes(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, rtname FROM %s ORDER BY id", "road_type")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			id   int
			name string
		)
		if err := db.ScanRow(row, &id, &name); err != nil {
			return err
		}
		im.g.SetRoadType(common.RoadType(id), name)
	}
	return nil
}

func (im *importer) roadNodes(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, junction, bifurcation, x, y, z FROM %s ORDER BY id", "road_node")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var n road.Node
		if err := db.ScanRow(row, &n.DBID, &n.IsJunction, &n.IsBifurcation, &n.Coordinates.X, &n.Coordinates.Y, &n.Coordinates.Z); err != nil {
			return err
		}
		if _, err := im.rg.AddVertex(n); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) roadSections(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, road_type, node_from, node_to, transport_type_ft, transport_type_tf, length, "+
		"car_speed_limit, car_average_speed, bus_average_speed, road_name, address_left_side, address_right_side, lane, "+
		"roundabout, bridge, tunnel, ramp, tollway FROM %s ORDER BY id", "road_section")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			s            road.Section
			roadType     int
			from, to     common.DBID
			ttFrom, ttTo common.DBID
		)
		if err := db.ScanRow(row, &s.DBID, &roadType, &from, &to, &ttFrom, &ttTo, &s.Length,
			&s.CarSpeedLimit, &s.CarAverageSpeed, &s.BusAverageSpeed, &s.RoadName, &s.AddressLeft, &s.AddressRight, &s.Lane,
			&s.IsRoundabout, &s.IsBridge, &s.IsTunnel, &s.IsRamp, &s.IsTollway); err != nil {
			return err
		}
		s.RoadType = common.RoadType(roadType)

		u, err := im.rg.VertexFromID(from)
		if err != nil {
			return fmt.Errorf("road section %d: %w", s.DBID, err)
		}
		v, err := im.rg.VertexFromID(to)
		if err != nil {
			return fmt.Errorf("road section %d: %w", s.DBID, err)
		}
		if ttFrom == 0 && ttTo == 0 {
			im.log.Warn("Road section usable by no transport type, skipping", zap.Int64("section", s.DBID))
			continue
		}
		if ttFrom != 0 {
			s.TransportTypes = ttFrom
			if _, err := im.rg.AddEdge(u, v, s); err != nil {
				return err
			}
		}
		if ttTo != 0 {
			s.TransportTypes = ttTo
			if _, err := im.rg.AddEdge(v, u, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (im *importer) roadRestrictions(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, sections FROM %s ORDER BY id", "road_restriction")
	if err != nil {
		return err
	}
	index := make(map[common.DBID]int, res.Size())
	for _, row := range res.Rows() {
		var r road.Restriction
		if err := row[0].Scan(&r.DBID); err != nil {
			return err
		}
		ids, err := row[1].Int64s()
		if err != nil {
			return fmt.Errorf("road restriction %d: %w", r.DBID, err)
		}
		for _, id := range ids {
			e, err := im.rg.EdgeFromID(id)
			if err != nil {
				return fmt.Errorf("road restriction %d: %w", r.DBID, err)
			}
			r.Edges = append(r.Edges, e)
		}
		r.Costs = make(map[common.DBID]float64)
		index[r.DBID] = len(im.rg.Restrictions)
		im.rg.Restrictions = append(im.rg.Restrictions, r)
	}

	res, err = im.query(ctx, "SELECT restriction_id, traffic_rules, time_value FROM %s", "road_restriction_time_penalty")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			id    common.DBID
			rules common.DBID
		)
		if err := db.ScanRow(row, &id, &rules); err != nil {
			return err
		}
		i, ok := index[id]
		if !ok {
			return fmt.Errorf("penalty for unknown road restriction %d", id)
		}
		// NULL penalty forbids the movement
		cost := math.Inf(1)
		if !row[2].IsNull() {
			if cost, err = row[2].Float(); err != nil {
				return err
			}
		}
		im.rg.Restrictions[i].Costs[rules] = cost
	}
	return nil
}

func (im *importer) ptNetworks(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, pnname, provided_transport_types FROM %s ORDER BY id", "pt_network")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var n pt.Network
		if err := db.ScanRow(row, &n.DBID, &n.Name, &n.ProvidedTransportTypes); err != nil {
			return err
		}
		im.networks[n.DBID] = pt.NewGraph(n)
	}
	return nil
}

func (im *importer) ptStops(ctx context.Context) error {
	// a stop belongs to every network one of its sections belongs to
	res, err := im.query(ctx, "SELECT DISTINCT s.network_id, n.id, n.psname, n.location_type, n.parent_station, n.road_section_id, "+
		"n.zone_id, n.abscissa_road_section, n.x, n.y, n.z FROM %s AS n JOIN %s AS s ON s.stop_from = n.id OR s.stop_to = n.id "+
		"ORDER BY s.network_id, n.id", "pt_stop", "pt_section")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			network      common.DBID
			locationType int
			s            pt.Stop
		)
		if err := db.ScanRow(row, &network, &s.DBID, &s.Name, &locationType, &s.ParentStation, &s.RoadSection,
			&s.ZoneID, &s.Abscissa, &s.Coordinates.X, &s.Coordinates.Y, &s.Coordinates.Z); err != nil {
			return err
		}
		s.IsStation = locationType == 1
		pg, ok := im.networks[network]
		if !ok {
			return fmt.Errorf("pt stop %d: unknown network %d", s.DBID, network)
		}
		if _, err := pg.AddVertex(s); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) ptSections(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT network_id, stop_from, stop_to, length FROM %s ORDER BY network_id, stop_from, stop_to", "pt_section")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			network  common.DBID
			from, to common.DBID
			length   float64
		)
		if err := db.ScanRow(row, &network, &from, &to, &length); err != nil {
			return err
		}
		pg, ok := im.networks[network]
		if !ok {
			return fmt.Errorf("pt section %d -> %d: unknown network %d", from, to, network)
		}
		u, err := pg.VertexFromID(from)
		if err != nil {
			return err
		}
		v, err := pg.VertexFromID(to)
		if err != nil {
			return err
		}
		if _, err := pg.AddEdge(u, v, pt.Section{Network: network, Length: length}); err != nil {
			return err
		}
	}
	for _, pg := range im.networks {
		if err := im.g.AddPublicTransport(pg); err != nil {
			return err
		}
	}
	return nil
}

func (im *importer) pois(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT id, poi_type, pname, parking_transport_type, road_section_id, abscissa_road_section, x, y, z FROM %s ORDER BY id", "poi")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			p       multimodal.POI
			poiType int
		)
		if err := db.ScanRow(row, &p.DBID, &poiType, &p.Name, &p.ParkingTransportTypes, &p.RoadSection, &p.Abscissa,
			&p.Coordinates.X, &p.Coordinates.Y, &p.Coordinates.Z); err != nil {
			return err
		}
		p.Type = multimodal.POIType(poiType)
		if err := im.g.AddPOI(p); err != nil {
			return err
		}
	}
	return nil
}

// Coordinates fetches the position of a vertex from the database.
func Coordinates(ctx context.Context, q Querier, schema string, g *multimodal.Graph, v multimodal.Vertex) (common.Point3D, error) {
	var (
		table string
		id    common.DBID
	)
	switch v.Type {
	case multimodal.VertexRoad:
		if !g.Valid(v) {
			return common.Point3D{}, fmt.Errorf("vertex %s: %w", v, multimodal.ErrNotFound)
		}
		table, id = "road_node", g.Road().Node(v.Road).DBID
	case multimodal.VertexPublicTransport:
		s, ok := g.Stop(v)
		if !ok {
			return common.Point3D{}, fmt.Errorf("vertex %s: %w", v, multimodal.ErrNotFound)
		}
		table, id = "pt_stop", s.DBID
	case multimodal.VertexPOI:
		table, id = "poi", v.POI
	default:
		return common.Point3D{}, fmt.Errorf("vertex %s: %w", v, multimodal.ErrNotFound)
	}

	res, err := q.Exec(ctx, fmt.Sprintf("SELECT x, y, z FROM %s WHERE id = %d", qualify(schema, table), id))
	if err != nil {
		return common.Point3D{}, err
	}
	if res.Size() == 0 {
		return common.Point3D{}, fmt.Errorf("vertex %s: %w", v, multimodal.ErrNotFound)
	}
	var p common.Point3D
	row, _ := res.Row(0)
	if err := db.ScanRow(row, &p.X, &p.Y, &p.Z); err != nil {
		return common.Point3D{}, err
	}
	return p, nil
}
