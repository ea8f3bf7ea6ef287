package importer

import (
	"context"
	"fmt"
	"time"

	"tempus/common"
	"tempus/db"
	"tempus/pt"
)

var weekdays = [...]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}

func (im *importer) timetables(ctx context.Context) error {
	calendars, err := im.calendars(ctx)
	if err != nil {
		return err
	}

	res, err := im.query(ctx, "SELECT id, network_id, short_name, long_name, route_type FROM %s ORDER BY id", "pt_route")
	if err != nil {
		return err
	}
	routes := make(map[common.DBID]*pt.Route, res.Size())
	for _, row := range res.Rows() {
		var (
			r         pt.Route
			routeType int
		)
		if err := db.ScanRow(row, &r.DBID, &r.Network, &r.ShortName, &r.LongName, &routeType); err != nil {
			return err
		}
		r.Type = pt.RouteType(routeType)
		pg, ok := im.networks[r.Network]
		if !ok {
			return fmt.Errorf("route %d: unknown network %d", r.DBID, r.Network)
		}
		pg.Timetable.Routes[r.DBID] = &r
		routes[r.DBID] = &r
	}

	res, err = im.query(ctx, "SELECT id, route_id, service_id, short_name FROM %s ORDER BY id", "pt_trip")
	if err != nil {
		return err
	}
	trips := make(map[common.DBID]*pt.Trip, res.Size())
	for _, row := range res.Rows() {
		var (
			t       pt.Trip
			service common.DBID
		)
		if err := db.ScanRow(row, &t.DBID, &t.Route, &service, &t.ShortName); err != nil {
			return err
		}
		r, ok := routes[t.Route]
		if !ok {
			return fmt.Errorf("trip %d: unknown route %d", t.DBID, t.Route)
		}
		c, ok := calendars[service]
		if !ok {
			return fmt.Errorf("trip %d: unknown service %d", t.DBID, service)
		}
		t.Service = c
		tt := im.networks[r.Network].Timetable
		tt.Calendars[c.DBID] = c
		tt.Trips[t.DBID] = &t
		r.Trips = append(r.Trips, &t)
		trips[t.DBID] = &t
	}

	res, err = im.query(ctx, "SELECT trip_id, stop_id, arrival_time, departure_time, stop_headsign, pickup_type, drop_off_type, "+
		"shape_dist_traveled FROM %s ORDER BY trip_id, stop_sequence", "pt_stop_time")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			trip common.DBID
			st   pt.StopTime
		)
		if err := db.ScanRow(row, &trip, &st.Stop, &st.Arrival, &st.Departure, &st.Headsign, &st.PickupType,
			&st.DropOffType, &st.ShapeDistTraveled); err != nil {
			return err
		}
		t, ok := trips[trip]
		if !ok {
			return fmt.Errorf("stop time: unknown trip %d", trip)
		}
		t.StopTimes = append(t.StopTimes, st)
	}

	res, err = im.query(ctx, "SELECT trip_id, start_time, end_time, headway_secs FROM %s ORDER BY trip_id, start_time", "pt_frequency")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			trip common.DBID
			f    pt.Frequency
		)
		if err := db.ScanRow(row, &trip, &f.Start, &f.End, &f.HeadwaySecs); err != nil {
			return err
		}
		t, ok := trips[trip]
		if !ok {
			return fmt.Errorf("frequency: unknown trip %d", trip)
		}
		t.Frequencies = append(t.Frequencies, f)
	}

	return im.transfers(ctx)
}

func (im *importer) calendars(ctx context.Context) (map[common.DBID]*pt.Calendar, error) {
	res, err := im.query(ctx, "SELECT service_id, monday, tuesday, wednesday, thursday, friday, saturday, sunday, "+
		"start_date, end_date FROM %s ORDER BY service_id", "pt_calendar")
	if err != nil {
		return nil, err
	}
	calendars := make(map[common.DBID]*pt.Calendar, res.Size())
	for _, row := range res.Rows() {
		var (
			c    pt.Calendar
			days [7]bool
		)
		if err := db.ScanRow(row, &c.DBID, &days[0], &days[1], &days[2], &days[3], &days[4], &days[5], &days[6],
			&c.StartDate, &c.EndDate); err != nil {
			return nil, err
		}
		for i, wd := range weekdays {
			c.Days[wd] = days[i]
		}
		calendars[c.DBID] = &c
	}

	res, err = im.query(ctx, "SELECT service_id, calendar_date, exception_type FROM %s ORDER BY service_id, calendar_date", "pt_calendar_date")
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows() {
		var (
			service common.DBID
			e       pt.CalendarException
			typ     int
		)
		if err := db.ScanRow(row, &service, &e.Date, &typ); err != nil {
			return nil, err
		}
		e.Type = pt.ExceptionType(typ)
		c, ok := calendars[service]
		if !ok {
			// services defined by exceptions only
			c = &pt.Calendar{DBID: service}
			calendars[service] = c
		}
		c.Exceptions = append(c.Exceptions, e)
	}
	return calendars, nil
}

func (im *importer) transfers(ctx context.Context) error {
	res, err := im.query(ctx, "SELECT from_stop_id, to_stop_id, transfer_type, min_transfer_time FROM %s", "pt_transfer")
	if err != nil {
		return err
	}
	for _, row := range res.Rows() {
		var (
			t   pt.Transfer
			typ int
		)
		if err := db.ScanRow(row, &t.FromStop, &t.ToStop, &typ, &t.MinTransferTime); err != nil {
			return err
		}
		t.Type = pt.TransferType(typ)
		attached := false
		for _, pg := range im.networks {
			if _, err := pg.VertexFromID(t.FromStop); err == nil {
				pg.Timetable.Transfers = append(pg.Timetable.Transfers, &t)
				attached = true
			}
		}
		if !attached {
			return fmt.Errorf("transfer %d -> %d: unknown stop %d", t.FromStop, t.ToStop, t.FromStop)
		}
	}
	return nil
}
