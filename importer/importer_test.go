package importer_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"tempus/common"
	"tempus/db"
	"tempus/importer"
	"tempus/internal/fixture"
	"tempus/multimodal"
	"tempus/road"
)

func database(t *testing.T, extra ...string) (*db.Connection, *zap.Logger) {
	t.Helper()

	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	c, err := db.Connect(context.Background(), db.DriverSQLite, ":memory:", log)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	stmts := append(importer.Schema(""), fixture.Statements("")...)
	for _, q := range append(stmts, extra...) {
		if _, err := c.ExecStatement(context.Background(), q); err != nil {
			t.Fatalf("ExecStatement(%q) error = %v", q, err)
		}
	}
	return c, log
}

func TestImport(t *testing.T) {
	c, log := database(t)

	var (
		calls    int
		finished bool
		last     float64
	)
	g, err := importer.Import(context.Background(), c, importer.Options{
		Progress: func(fraction float64, done bool) {
			calls++
			if fraction < last {
				t.Errorf("progress went backwards: %f after %f", fraction, last)
			}
			last, finished = fraction, done
		},
	}, log)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if calls == 0 || !finished || last != 1 {
		t.Errorf("progress calls = %d, finished = %v, last = %f", calls, finished, last)
	}

	want := fixture.MustGraph()
	if got, w := g.Road().NumVertices(), want.Road().NumVertices(); got != w {
		t.Errorf("road vertices = %d, want %d", got, w)
	}
	if got, w := g.Road().NumEdges(), want.Road().NumEdges(); got != w {
		t.Errorf("road edges = %d, want %d", got, w)
	}
	if got, w := g.NumVertices(), want.NumVertices(); got != w {
		t.Errorf("multimodal vertices = %d, want %d", got, w)
	}
	if got, w := g.NumEdges(), want.NumEdges(); got != w {
		t.Errorf("multimodal edges = %d, want %d", got, w)
	}
	if err := g.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() error = %v", err)
	}
	if len(g.TransportTypes()) != len(common.DefaultTransportTypes()) {
		t.Errorf("transport types = %d", len(g.TransportTypes()))
	}
	if g.RoadTypes()[common.RoadTypeStreet] != "street" {
		t.Errorf("road types = %v", g.RoadTypes())
	}

	e10, err := g.Road().EdgeFromID(10)
	if err != nil {
		t.Fatal(err)
	}
	e13, err := g.Road().EdgeFromID(13)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Road().ForbiddenMovement(e10, e13, common.TransportBus) {
		t.Error("bus movement 10 -> 13 should be forbidden")
	}
	if g.Road().ForbiddenMovement(e10, e13, common.TransportCar) {
		t.Error("car movement 10 -> 13 should be allowed")
	}
	if c := g.Road().Restrictions[0].Cost(common.TransportBus); !math.IsInf(c, 1) {
		t.Errorf("bus penalty = %f, want +Inf", c)
	}

	pg, ok := g.PublicTransport(fixture.Network)
	if !ok {
		t.Fatalf("network %d not loaded", fixture.Network)
	}
	if pg.Network.Name != "tram" || pg.NumVertices() != 2 || pg.NumEdges() != 2 {
		t.Errorf("network = %+v, %d stops, %d sections", pg.Network, pg.NumVertices(), pg.NumEdges())
	}
	v, err := pg.VertexFromID(fixture.StopA)
	if err != nil {
		t.Fatal(err)
	}
	if s := pg.Stop(v); s.Name != "Stop A" || s.Abscissa != 0.5 || s.RoadEdge != e10 {
		t.Errorf("stop = %+v", s)
	}

	p, ok := g.POI(fixture.CarPark)
	if !ok {
		t.Fatalf("poi %d not loaded", fixture.CarPark)
	}
	if p.Type != multimodal.POICarPark || p.ParkingTransportTypes != common.TransportCar {
		t.Errorf("poi = %+v", p)
	}
}

func TestImportOneWay(t *testing.T) {
	c, log := database(t,
		"INSERT INTO road_node (id, junction, bifurcation, x, y, z) VALUES (7, 0, 0, 400, 0, 0)",
		"INSERT INTO road_section (id, road_type, node_from, node_to, transport_type_ft, transport_type_tf, length) VALUES (17, 5, 4, 7, 1, 0, 100)",
		"INSERT INTO road_section (id, road_type, node_from, node_to, transport_type_ft, transport_type_tf, length) VALUES (18, 5, 4, 7, 0, 0, 100)",
	)
	g, err := importer.Import(context.Background(), c, importer.Options{}, log)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	want := fixture.MustGraph()
	if got, w := g.Road().NumEdges(), want.Road().NumEdges()+1; got != w {
		t.Errorf("road edges = %d, want %d", got, w)
	}
	u, _ := g.Road().VertexFromID(4)
	v, _ := g.Road().VertexFromID(7)
	if _, ok := g.Road().Edge(u, v); !ok {
		t.Error("missing edge 4 -> 7")
	}
	if _, ok := g.Road().Edge(v, u); ok {
		t.Error("unexpected edge 7 -> 4")
	}
}

func TestImportDanglingReference(t *testing.T) {
	for _, tc := range []struct {
		name  string
		extra string
	}{
		{"section node", "INSERT INTO road_section (id, road_type, node_from, node_to, transport_type_ft, transport_type_tf, length) VALUES (20, 5, 1, 99, 1, 1, 10)"},
		{"restriction section", "INSERT INTO road_restriction (id, sections) VALUES (2, '{10,99}')"},
		{"stop section", "INSERT INTO pt_stop (id, psname, location_type, road_section_id, abscissa_road_section) VALUES (102, 'Lost', 0, 99, 0.5)"},
		{"poi section", "INSERT INTO poi (id, poi_type, pname, road_section_id, abscissa_road_section) VALUES (1001, 1, 'Lost', 99, 0.5)"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			extra := []string{tc.extra}
			if tc.name == "stop section" {
				extra = append(extra, "INSERT INTO pt_section (network_id, stop_from, stop_to, length) VALUES (1, 101, 102, 10)")
			}
			c, log := database(t, extra...)
			_, err := importer.Import(context.Background(), c, importer.Options{}, log)
			if err == nil {
				t.Fatal("Import() error = nil")
			}
			if !errors.Is(err, road.ErrNotFound) {
				t.Errorf("Import() error = %v, want road.ErrNotFound", err)
			}
		})
	}
}

func TestImportTimetable(t *testing.T) {
	c, log := database(t,
		"INSERT INTO pt_calendar VALUES (1, 1, 1, 1, 1, 1, 0, 0, '2024-01-01', '2024-12-31')",
		"INSERT INTO pt_calendar_date VALUES (1, '2024-05-01', 2)",
		"INSERT INTO pt_route VALUES (1, 1, 'T1', 'Tram 1', 0)",
		"INSERT INTO pt_trip VALUES (1, 1, 1, 'T1-1')",
		"INSERT INTO pt_stop_time VALUES (1, 100, 1, '08:00:00', '08:00:00', NULL, 0, 0, 0)",
		"INSERT INTO pt_stop_time VALUES (1, 101, 2, '08:05:00', '08:06:00', NULL, 0, 0, 200)",
		"INSERT INTO pt_frequency VALUES (1, '08:00:00', '09:00:00', 1800)",
		"INSERT INTO pt_transfer VALUES (100, 101, 2, 120)",
	)
	g, err := importer.Import(context.Background(), c, importer.Options{Timetable: true}, log)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	pg, _ := g.PublicTransport(fixture.Network)
	tt := pg.Timetable
	if len(tt.Routes) != 1 || len(tt.Trips) != 1 || len(tt.Calendars) != 1 || len(tt.Transfers) != 1 {
		t.Fatalf("timetable = %+v", tt)
	}
	if err := tt.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() error = %v", err)
	}
	trip := tt.Trips[1]
	if len(trip.StopTimes) != 2 || trip.StopTimes[1].Departure != 8*3600+6*60 {
		t.Errorf("stop times = %+v", trip.StopTimes)
	}

	// Tuesday
	d, ok := tt.NextDeparture(fixture.StopB, time.Date(2024, 4, 30, 8, 10, 0, 0, time.UTC))
	if !ok || d.Time != 8*3600+1800+6*60 {
		t.Errorf("NextDeparture() = %+v, %v", d, ok)
	}
	// removed by exception
	if _, ok := tt.NextDeparture(fixture.StopA, time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)); ok {
		t.Error("service should not run on 2024-05-01")
	}
}

func TestCoordinates(t *testing.T) {
	c, log := database(t)
	g, err := importer.Import(context.Background(), c, importer.Options{}, log)
	if err != nil {
		t.Fatal(err)
	}
	rv, _ := g.Road().VertexFromID(5)
	pv, _ := func() (multimodal.Vertex, error) {
		pg, _ := g.PublicTransport(fixture.Network)
		v, err := pg.VertexFromID(fixture.StopB)
		return multimodal.TransportVertex(fixture.Network, v), err
	}()

	for _, tc := range []struct {
		v    multimodal.Vertex
		want common.Point3D
	}{
		{multimodal.RoadVertex(rv), common.Point3D{X: 100, Y: 100}},
		{pv, common.Point3D{X: 250}},
		{multimodal.POIVertex(fixture.CarPark), common.Point3D{X: 150}},
	} {
		got, err := importer.Coordinates(context.Background(), c, "", g, tc.v)
		if err != nil {
			t.Errorf("Coordinates(%s) error = %v", tc.v, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Coordinates(%s) = %+v, want %+v", tc.v, got, tc.want)
		}
	}

	if _, err := importer.Coordinates(context.Background(), c, "", g, multimodal.POIVertex(42)); !errors.Is(err, multimodal.ErrNotFound) {
		t.Errorf("Coordinates(unknown) error = %v", err)
	}
}
