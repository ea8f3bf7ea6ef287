// Package snapshot saves a graph into a SQLite file laid out like the
// database it was imported from, so it can be loaded without a server.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"tempus/common"
	"tempus/db"
	"tempus/importer"
	"tempus/multimodal"
	"tempus/pt"
	"tempus/road"
	"tempus/utils/timer"
)

// Dump writes g into a new file at path, an existing file is replaced.
func Dump(ctx context.Context, path string, g *multimodal.Graph, log *zap.Logger) (err error) {
	log = log.Named("snapshot")
	t := timer.New()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to replace snapshot: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("unable to create snapshot %q: %w", path, err)
	}
	defer func() {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
	}()
	conn.SetInterrupt(ctx.Done())

	for _, stmt := range importer.Schema("") {
		if err := sqlitex.ExecuteTransient(conn, stmt, nil); err != nil {
			return fmt.Errorf("unable to create schema: %w", err)
		}
	}

	defer sqlitex.Save(conn)(&err)

	w := &writer{conn: conn, transfers: make(map[pt.Transfer]bool)}
	w.transportTypes(g)
	w.roadTypes(g)
	w.roadNodes(g.Road())
	w.roadSections(g.Road())
	w.restrictions(g.Road())
	for _, id := range g.NetworkIDs() {
		pg, _ := g.PublicTransport(id)
		w.network(pg)
	}
	for _, id := range g.POIIDs() {
		p, _ := g.POI(id)
		w.poi(p)
	}
	if w.err != nil {
		return w.err
	}
	log.Info("Snapshot written", zap.String("path", path), zap.Int("rows", w.rows), zap.Float64("elapsed_s", t.Elapsed()))
	return nil
}

// Load reads a snapshot written by Dump.
func Load(ctx context.Context, path string, log *zap.Logger) (*multimodal.Graph, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("unable to open snapshot: %w", err)
	}
	conn, err := db.Connect(ctx, db.DriverSQLite, path, log)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return importer.Import(ctx, conn, importer.Options{Timetable: true}, log)
}

// writer remembers the first error, every later call is a no-op.
type writer struct {
	conn      *sqlite.Conn
	rows      int
	transfers map[pt.Transfer]bool
	err       error
}

func (w *writer) insert(table string, args ...any) {
	if w.err != nil {
		return
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	// the statement is cached by the connection
	query := fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders)
	if err := sqlitex.Execute(w.conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		w.err = fmt.Errorf("insert into %s: %w", table, err)
		return
	}
	w.rows++
}

// nullable turns zero ids into NULL.
func nullable(id common.DBID) any {
	if id == 0 {
		return nil
	}
	return id
}

func (w *writer) transportTypes(g *multimodal.Graph) {
	tt := g.TransportTypes()
	for _, id := range tt.IDs() {
		t := tt[id]
		w.insert("transport_type", t.ID, t.ParentID, t.Name, t.NeedParking, t.NeedStation, t.NeedReturn, t.NeedNetwork)
	}
}

func (w *writer) roadTypes(g *multimodal.Graph) {
	types := g.RoadTypes()
	ids := make([]int, 0, len(types))
	for t := range types {
		ids = append(ids, int(t))
	}
	slices.Sort(ids)
	for _, id := range ids {
		w.insert("road_type", id, types[common.RoadType(id)])
	}
}

func (w *writer) roadNodes(rg *road.Graph) {
	for _, v := range rg.Vertices() {
		n := rg.Node(v)
		c := n.Coordinates
		w.insert("road_node", n.DBID, n.IsJunction, n.IsBifurcation, c.X, c.Y, c.Z)
	}
}

type sectionRow struct {
	first  road.Edge
	ft, tf common.DBID
}

// roadSections folds both directions of a section back into one row.
func (w *writer) roadSections(rg *road.Graph) {
	rows := make(map[common.DBID]*sectionRow)
	var order []common.DBID
	for _, e := range rg.Edges() {
		s := rg.Section(e)
		r, ok := rows[s.DBID]
		if !ok {
			rows[s.DBID] = &sectionRow{first: e, ft: s.TransportTypes}
			order = append(order, s.DBID)
			continue
		}
		r.tf = s.TransportTypes
	}
	for _, id := range order {
		r := rows[id]
		s := rg.Section(r.first)
		from, to := rg.Node(rg.Source(r.first)).DBID, rg.Node(rg.Target(r.first)).DBID
		w.insert("road_section", s.DBID, int(s.RoadType), from, to, r.ft, r.tf, s.Length,
			s.CarSpeedLimit, s.CarAverageSpeed, s.BusAverageSpeed, s.RoadName, s.AddressLeft, s.AddressRight, s.Lane,
			s.IsRoundabout, s.IsBridge, s.IsTunnel, s.IsRamp, s.IsTollway)
	}
}

func (w *writer) restrictions(rg *road.Graph) {
	for _, r := range rg.Restrictions {
		ids := make([]string, 0, len(r.Edges))
		for _, e := range r.Edges {
			ids = append(ids, strconv.FormatInt(rg.Section(e).DBID, 10))
		}
		w.insert("road_restriction", r.DBID, "{"+strings.Join(ids, ",")+"}")

		masks := make([]common.DBID, 0, len(r.Costs))
		for m := range r.Costs {
			masks = append(masks, m)
		}
		slices.Sort(masks)
		for _, m := range masks {
			var cost any = r.Costs[m]
			if math.IsInf(r.Costs[m], 1) {
				cost = nil
			}
			w.insert("road_restriction_time_penalty", r.DBID, 0, m, cost)
		}
	}
}

func (w *writer) network(pg *pt.Graph) {
	n := pg.Network
	w.insert("pt_network", n.DBID, n.Name, n.ProvidedTransportTypes)
	for _, v := range pg.Vertices() {
		s := pg.Stop(v)
		if w.stopExists(s.DBID) {
			continue
		}
		locationType := 0
		if s.IsStation {
			locationType = 1
		}
		c := s.Coordinates
		w.insert("pt_stop", s.DBID, s.Name, locationType, nullable(s.ParentStation), s.RoadSection, s.ZoneID, s.Abscissa, c.X, c.Y, c.Z)
	}
	for _, e := range pg.Edges() {
		w.insert("pt_section", n.DBID, pg.Stop(pg.Source(e)).DBID, pg.Stop(pg.Target(e)).DBID, pg.Section(e).Length)
	}
	if pg.Timetable != nil {
		w.timetable(pg.Timetable)
	}
}

// stopExists tells whether a stop shared by several networks is already
// written.
func (w *writer) stopExists(id common.DBID) bool {
	if w.err != nil {
		return true
	}
	found := false
	err := sqlitex.Execute(w.conn, "SELECT 1 FROM pt_stop WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		w.err = err
	}
	return found
}

func (w *writer) poi(p *multimodal.POI) {
	c := p.Coordinates
	w.insert("poi", p.DBID, int(p.Type), p.Name, p.ParkingTransportTypes, p.RoadSection, p.Abscissa, c.X, c.Y, c.Z)
}

func (w *writer) timetable(tt *pt.Timetable) {
	for _, id := range sortedIDs(tt.Calendars) {
		c := tt.Calendars[id]
		if w.calendarExists(id) {
			continue
		}
		// services defined by exceptions only have no regular days
		if !c.StartDate.IsZero() {
			w.insert("pt_calendar", c.DBID, c.Days[1], c.Days[2], c.Days[3], c.Days[4], c.Days[5], c.Days[6], c.Days[0],
				c.StartDate.String(), c.EndDate.String())
		}
		for _, e := range c.Exceptions {
			w.insert("pt_calendar_date", c.DBID, e.Date.String(), int(e.Type))
		}
	}
	for _, id := range sortedIDs(tt.Routes) {
		r := tt.Routes[id]
		w.insert("pt_route", r.DBID, r.Network, r.ShortName, r.LongName, int(r.Type))
	}
	for _, id := range sortedIDs(tt.Trips) {
		t := tt.Trips[id]
		w.insert("pt_trip", t.DBID, t.Route, t.Service.DBID, t.ShortName)
		for i, st := range t.StopTimes {
			w.insert("pt_stop_time", t.DBID, st.Stop, i+1, st.Arrival.String(), st.Departure.String(), st.Headsign,
				st.PickupType, st.DropOffType, st.ShapeDistTraveled)
		}
		for _, f := range t.Frequencies {
			w.insert("pt_frequency", t.DBID, f.Start.String(), f.End.String(), f.HeadwaySecs)
		}
	}
	// transfers are attached to every network serving their origin
	for _, tr := range tt.Transfers {
		if w.transfers[*tr] {
			continue
		}
		w.transfers[*tr] = true
		w.insert("pt_transfer", tr.FromStop, tr.ToStop, int(tr.Type), tr.MinTransferTime)
	}
}

func (w *writer) calendarExists(id common.DBID) bool {
	if w.err != nil {
		return true
	}
	found := false
	err := sqlitex.Execute(w.conn, "SELECT 1 FROM pt_calendar_date WHERE service_id = ? UNION SELECT 1 FROM pt_calendar WHERE service_id = ?", &sqlitex.ExecOptions{
		Args: []any{id, id},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		w.err = err
	}
	return found
}

func sortedIDs[V any](m map[common.DBID]V) []common.DBID {
	ids := make([]common.DBID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
