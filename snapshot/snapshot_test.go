package snapshot_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"tempus/common"
	"tempus/db"
	"tempus/importer"
	"tempus/internal/fixture"
	"tempus/multimodal"
	"tempus/snapshot"
)

func logger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func roundTrip(t *testing.T, g *multimodal.Graph) *multimodal.Graph {
	t.Helper()

	path := filepath.Join(t.TempDir(), "graph.sqlite")
	log := logger(t)
	if err := snapshot.Dump(context.Background(), path, g, log); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	loaded, err := snapshot.Load(context.Background(), path, log)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return loaded
}

func TestDumpLoad(t *testing.T) {
	want := fixture.MustGraph()
	got := roundTrip(t, want)

	if err := got.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() error = %v", err)
	}
	counts := func(g *multimodal.Graph) []int {
		return []int{g.Road().NumVertices(), g.Road().NumEdges(), g.NumVertices(), g.NumEdges(), len(g.NetworkIDs()), len(g.POIIDs())}
	}
	if diff := cmp.Diff(counts(want), counts(got)); diff != "" {
		t.Errorf("graph sizes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.TransportTypes(), got.TransportTypes()); diff != "" {
		t.Errorf("transport types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.RoadTypes(), got.RoadTypes()); diff != "" {
		t.Errorf("road types mismatch (-want +got):\n%s", diff)
	}

	for _, id := range []common.DBID{10, 12, 16} {
		we, _ := want.Road().EdgeFromID(id)
		ge, err := got.Road().EdgeFromID(id)
		if err != nil {
			t.Fatalf("EdgeFromID(%d) error = %v", id, err)
		}
		if diff := cmp.Diff(*want.Road().Section(we), *got.Road().Section(ge)); diff != "" {
			t.Errorf("section %d mismatch (-want +got):\n%s", id, diff)
		}
	}

	rg := got.Road()
	if len(rg.Restrictions) != 1 {
		t.Fatalf("restrictions = %d, want 1", len(rg.Restrictions))
	}
	if c := rg.Restrictions[0].Cost(common.TransportBus); !math.IsInf(c, 1) {
		t.Errorf("bus restriction cost = %f, want +Inf", c)
	}
	e10, _ := rg.EdgeFromID(10)
	e13, _ := rg.EdgeFromID(13)
	if !rg.ForbiddenMovement(e10, e13, common.TransportBus) {
		t.Error("bus movement 10 -> 13 should stay forbidden")
	}

	pg, ok := got.PublicTransport(fixture.Network)
	if !ok {
		t.Fatalf("network %d missing", fixture.Network)
	}
	if pg.Network.Name != "tram" || pg.NumVertices() != 2 || pg.NumEdges() != 2 {
		t.Errorf("network = %+v, %d stops, %d sections", pg.Network, pg.NumVertices(), pg.NumEdges())
	}
	b, _ := pg.VertexFromID(fixture.StopB)
	if s := pg.Stop(b); s.Name != "Stop B" || s.RoadSection != 12 || s.Coordinates.X != 250 {
		t.Errorf("stop = %+v", s)
	}

	p, ok := got.POI(fixture.CarPark)
	if !ok || p.Type != multimodal.POICarPark || p.ParkingTransportTypes != common.TransportCar || p.Abscissa != 0.5 {
		t.Errorf("POI = %+v, %v", p, ok)
	}
}

func TestDumpReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.sqlite")
	log := logger(t)
	g := fixture.MustGraph()
	for range 2 {
		if err := snapshot.Dump(context.Background(), path, g, log); err != nil {
			t.Fatalf("Dump() error = %v", err)
		}
	}
	if _, err := snapshot.Load(context.Background(), path, log); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := snapshot.Load(context.Background(), filepath.Join(t.TempDir(), "none.sqlite"), logger(t)); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestDumpTimetable(t *testing.T) {
	log := logger(t)
	c, err := db.Connect(context.Background(), db.DriverSQLite, ":memory:", log)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	stmts := append(importer.Schema(""), fixture.Statements("")...)
	stmts = append(stmts,
		"INSERT INTO pt_calendar VALUES (1, 1, 1, 1, 1, 1, 0, 0, '2024-01-01', '2024-12-31')",
		"INSERT INTO pt_calendar_date VALUES (1, '2024-05-01', 2)",
		"INSERT INTO pt_calendar_date VALUES (2, '2024-05-04', 1)",
		"INSERT INTO pt_route VALUES (1, 1, 'T1', 'Tram 1', 0)",
		"INSERT INTO pt_trip VALUES (1, 1, 1, 'T1-1')",
		"INSERT INTO pt_trip VALUES (2, 1, 2, 'T1-2')",
		"INSERT INTO pt_stop_time VALUES (1, 100, 1, '08:00:00', '08:00:00', 'Stop B', 0, 0, 0)",
		"INSERT INTO pt_stop_time VALUES (1, 101, 2, '08:05:00', '08:06:00', '', 0, 0, 200)",
		"INSERT INTO pt_stop_time VALUES (2, 100, 1, '10:00:00', '10:00:00', '', 0, 0, 0)",
		"INSERT INTO pt_stop_time VALUES (2, 101, 2, '10:05:00', '10:05:00', '', 0, 0, 200)",
		"INSERT INTO pt_frequency VALUES (1, '08:00:00', '09:00:00', 1800)",
		"INSERT INTO pt_transfer VALUES (100, 101, 2, 120)",
	)
	for _, q := range stmts {
		if _, err := c.ExecStatement(context.Background(), q); err != nil {
			t.Fatalf("ExecStatement(%q) error = %v", q, err)
		}
	}
	want, err := importer.Import(context.Background(), c, importer.Options{Timetable: true}, log)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	got := roundTrip(t, want)

	wpg, _ := want.PublicTransport(fixture.Network)
	gpg, _ := got.PublicTransport(fixture.Network)
	wt, gt := wpg.Timetable, gpg.Timetable
	if diff := cmp.Diff(wt.Calendars, gt.Calendars); diff != "" {
		t.Errorf("calendars mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wt.Trips, gt.Trips); diff != "" {
		t.Errorf("trips mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wt.Transfers, gt.Transfers); diff != "" {
		t.Errorf("transfers mismatch (-want +got):\n%s", diff)
	}

	// Saturday, only the exception service runs
	d, ok := gt.NextDeparture(fixture.StopA, time.Date(2024, 5, 4, 7, 0, 0, 0, time.UTC))
	if !ok || d.Trip != 2 || d.Time != 10*3600 {
		t.Errorf("NextDeparture() = %+v, %v", d, ok)
	}
}
