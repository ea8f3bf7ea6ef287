package pt

import (
	"errors"
	"testing"
	"time"

	"tempus/common"
)

func line(t *testing.T) *Graph {
	t.Helper()

	g := NewGraph(Network{DBID: 1, Name: "tisseo", ProvidedTransportTypes: common.TransportBus})
	stops := []Stop{
		{DBID: 100, Name: "Gare", IsStation: true, RoadSection: 10, Abscissa: 0.5},
		{DBID: 101, Name: "Gare quai A", ParentStation: 100, RoadSection: 10, Abscissa: 0.6},
		{DBID: 102, Name: "Capitole", RoadSection: 11, Abscissa: 0},
	}
	for _, s := range stops {
		if _, err := g.AddVertex(s); err != nil {
			t.Fatalf("AddVertex(%d) error = %v", s.DBID, err)
		}
	}
	if _, err := g.AddEdge(1, 2, Section{Network: 1, Length: 800}); err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}
	return g
}

func TestGraph(t *testing.T) {
	g := line(t)

	if g.NumVertices() != 3 || g.NumEdges() != 1 {
		t.Fatalf("size = %d/%d", g.NumVertices(), g.NumEdges())
	}
	e, ok := g.Edge(1, 2)
	if !ok || g.Section(e).Length != 800 {
		t.Errorf("Edge(1, 2) = %v, %v", e, ok)
	}
	if _, ok := g.Edge(2, 1); ok {
		t.Error("Edge(2, 1) must not exist")
	}
	if v, err := g.VertexFromID(102); err != nil || g.Stop(v).Name != "Capitole" {
		t.Errorf("VertexFromID(102) = %v, %v", v, err)
	}
	if _, err := g.VertexFromID(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("VertexFromID(7) error = %v", err)
	}
	if err := g.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() = %v", err)
	}
}

func TestStopConsistency(t *testing.T) {
	tests := []struct {
		name string
		stop Stop
		ok   bool
	}{
		{"valid", Stop{DBID: 1, RoadSection: 3, Abscissa: 1}, true},
		{"no road section", Stop{DBID: 1, Abscissa: 0.2}, false},
		{"abscissa", Stop{DBID: 1, RoadSection: 3, Abscissa: 1.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.stop.CheckConsistency(); (err == nil) != tt.ok {
				t.Errorf("CheckConsistency() = %v, want ok=%v", err, tt.ok)
			}
		})
	}

	g := line(t)
	g.Stop(0).IsStation = false
	if err := g.CheckConsistency(); !errors.Is(err, common.ErrInconsistent) {
		t.Errorf("parent which is not a station accepted: %v", err)
	}
}

func TestCalendar(t *testing.T) {
	c := &Calendar{
		DBID:      1,
		StartDate: common.Date{Year: 2013, Month: time.June, Day: 1},
		EndDate:   common.Date{Year: 2013, Month: time.June, Day: 30},
	}
	c.Days[time.Monday] = true
	c.Exceptions = []CalendarException{
		{Date: common.Date{Year: 2013, Month: time.June, Day: 10}, Type: ServiceRemoved},
		{Date: common.Date{Year: 2013, Month: time.June, Day: 15}, Type: ServiceAdded},
	}

	tests := []struct {
		day  int
		want bool
	}{
		{3, true},   // monday
		{4, false},  // tuesday
		{10, false}, // removed monday
		{15, true},  // added saturday
	}
	for _, tt := range tests {
		d := common.Date{Year: 2013, Month: time.June, Day: tt.day}
		if got := c.Active(d); got != tt.want {
			t.Errorf("Active(%s) = %v, want %v", d, got, tt.want)
		}
	}
	if c.Active(common.Date{Year: 2013, Month: time.July, Day: 1}) {
		t.Error("service must not run after end date")
	}
	if err := c.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency() = %v", err)
	}
	c.EndDate = common.Date{Year: 2012, Month: time.January, Day: 1}
	if err := c.CheckConsistency(); err == nil {
		t.Error("reversed calendar accepted")
	}
}

func TestTimetableConsistency(t *testing.T) {
	tt := NewTimetable()
	tt.Trips[1] = &Trip{DBID: 1}
	tt.Routes[1] = &Route{DBID: 1, Type: RouteType(9)}
	fare := NewFareAttribute(1, 1.6)
	fare.Transfers = 3
	tt.Fares = append(tt.Fares, fare)
	tt.Transfers = append(tt.Transfers, &Transfer{FromStop: 1, ToStop: 2, Type: TransferMinTime})

	err := tt.CheckConsistency()
	if !errors.Is(err, common.ErrInconsistent) {
		t.Fatalf("CheckConsistency() = %v", err)
	}
	for _, c := range []common.Checker{tt.Trips[1], tt.Routes[1], fare, tt.Transfers[0]} {
		if c.CheckConsistency() == nil {
			t.Errorf("%T accepted", c)
		}
	}
	if fare.CurrencyType != "EUR" {
		t.Errorf("default currency = %s", fare.CurrencyType)
	}
}

func TestNextDeparture(t *testing.T) {
	cal := &Calendar{
		DBID:      1,
		StartDate: common.Date{Year: 2013, Month: time.January, Day: 1},
		EndDate:   common.Date{Year: 2013, Month: time.December, Day: 31},
	}
	for d := range cal.Days {
		cal.Days[d] = true
	}

	tt := NewTimetable()
	tt.Calendars[1] = cal
	tt.Trips[1] = &Trip{DBID: 1, Service: cal, StopTimes: []StopTime{
		{Stop: 100, Arrival: 8 * 3600, Departure: 8 * 3600},
		{Stop: 102, Arrival: 8*3600 + 300, Departure: 8*3600 + 300},
	}}
	tt.Trips[2] = &Trip{DBID: 2, Service: cal,
		StopTimes: []StopTime{
			{Stop: 100, Departure: 0},
			{Stop: 102, Arrival: 120, Departure: 120},
		},
		Frequencies: []Frequency{{Start: 9 * 3600, End: 10 * 3600, HeadwaySecs: 900}},
	}
	if err := tt.CheckConsistency(); err != nil {
		t.Fatalf("CheckConsistency() = %v", err)
	}

	at := time.Date(2013, time.June, 14, 8, 1, 0, 0, time.UTC)
	d, ok := tt.NextDeparture(102, at)
	if !ok || d.Trip != 1 || d.Time != 8*3600+300 {
		t.Errorf("NextDeparture(08:01) = %+v, %v", d, ok)
	}

	at = time.Date(2013, time.June, 14, 9, 20, 0, 0, time.UTC)
	d, ok = tt.NextDeparture(102, at)
	if !ok || d.Trip != 2 || d.Time != 9*3600+1800+120 {
		t.Errorf("NextDeparture(09:20) = %+v, %v", d, ok)
	}

	at = time.Date(2013, time.June, 14, 11, 0, 0, 0, time.UTC)
	if _, ok := tt.NextDeparture(102, at); ok {
		t.Error("no departure expected after 11:00")
	}
}
