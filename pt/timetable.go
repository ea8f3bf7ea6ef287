package pt

import (
	"fmt"
	"sort"
	"time"

	"tempus/common"
)

type ExceptionType int

const (
	ServiceAdded ExceptionType = iota + 1
	ServiceRemoved
)

type CalendarException struct {
	Date common.Date
	Type ExceptionType
}

// Calendar tells on which days a service runs.
type Calendar struct {
	DBID       common.DBID
	Days       [7]bool // indexed by time.Weekday
	StartDate  common.Date
	EndDate    common.Date
	Exceptions []CalendarException
}

// Active reports whether the service runs on the given day, exceptions take
// precedence over the weekly pattern.
func (c *Calendar) Active(d common.Date) bool {
	for _, e := range c.Exceptions {
		if e.Date == d {
			return e.Type == ServiceAdded
		}
	}
	if d.Before(c.StartDate) || d.After(c.EndDate) {
		return false
	}
	return c.Days[d.Weekday()]
}

func (c *Calendar) CheckConsistency() error {
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("calendar %d: ends (%s) before it starts (%s): %w", c.DBID, c.EndDate, c.StartDate, common.ErrInconsistent)
	}
	for _, e := range c.Exceptions {
		if e.Type != ServiceAdded && e.Type != ServiceRemoved {
			return fmt.Errorf("calendar %d: unknown exception type %d: %w", c.DBID, e.Type, common.ErrInconsistent)
		}
	}
	return nil
}

type StopTime struct {
	Stop              common.DBID
	Arrival           common.Time
	Departure         common.Time
	Headsign          string
	PickupType        int
	DropOffType       int
	ShapeDistTraveled float64
}

type Frequency struct {
	Start       common.Time
	End         common.Time
	HeadwaySecs int
}

type Trip struct {
	DBID        common.DBID
	Route       common.DBID
	Service     *Calendar
	ShortName   string
	StopTimes   []StopTime
	Frequencies []Frequency
}

func (t *Trip) CheckConsistency() error {
	if t.Service == nil {
		return fmt.Errorf("trip %d: no service calendar: %w", t.DBID, common.ErrInconsistent)
	}
	for i := 1; i < len(t.StopTimes); i++ {
		if t.StopTimes[i].Arrival < t.StopTimes[i-1].Departure {
			return fmt.Errorf("trip %d: stop times not increasing at stop %d: %w", t.DBID, t.StopTimes[i].Stop, common.ErrInconsistent)
		}
	}
	for _, f := range t.Frequencies {
		if f.HeadwaySecs <= 0 || f.End < f.Start {
			return fmt.Errorf("trip %d: malformed frequency %+v: %w", t.DBID, f, common.ErrInconsistent)
		}
	}
	return nil
}

// Departures returns every departure time of the trip from a stop. Frequency
// based trips are expanded relative to their first stop time.
func (t *Trip) Departures(stop common.DBID) []common.Time {
	var (
		offset common.Time
		found  bool
	)
	for _, st := range t.StopTimes {
		if st.Stop == stop {
			offset, found = st.Departure, true
			break
		}
	}
	if !found {
		return nil
	}
	if len(t.Frequencies) == 0 {
		return []common.Time{offset}
	}
	offset -= t.StopTimes[0].Departure
	var out []common.Time
	for _, f := range t.Frequencies {
		for start := f.Start; start <= f.End; start += common.Time(f.HeadwaySecs) {
			out = append(out, start+offset)
		}
	}
	return out
}

type RouteType int

const (
	RouteTram RouteType = iota
	RouteSubway
	RouteRail
	RouteBus
	RouteFerry
	RouteCableCar
	RouteSuspendedCar
	RouteFunicular
)

type Route struct {
	DBID      common.DBID
	Network   common.DBID
	ShortName string
	LongName  string
	Type      RouteType
	Trips     []*Trip
}

func (r *Route) CheckConsistency() error {
	if r.Type < RouteTram || r.Type > RouteFunicular {
		return fmt.Errorf("route %d: unknown route type %d: %w", r.DBID, r.Type, common.ErrInconsistent)
	}
	return nil
}

type FareRule struct {
	Route        common.DBID
	Origins      []int
	Destinations []int
	Contains     []int
}

const DefaultCurrency = "EUR"

type FareAttribute struct {
	DBID              common.DBID
	Price             float64
	CurrencyType      string
	Transfers         int // -1 means unlimited
	TransfersDuration int // seconds
	Rules             []FareRule
}

func NewFareAttribute(id common.DBID, price float64) *FareAttribute {
	return &FareAttribute{DBID: id, Price: price, CurrencyType: DefaultCurrency, Transfers: -1}
}

func (f *FareAttribute) CheckConsistency() error {
	switch f.Transfers {
	case -1, 0, 1, 2:
	default:
		return fmt.Errorf("fare %d: transfers %d not in {0, 1, 2, -1}: %w", f.DBID, f.Transfers, common.ErrInconsistent)
	}
	if f.TransfersDuration < 0 {
		return fmt.Errorf("fare %d: negative transfer duration: %w", f.DBID, common.ErrInconsistent)
	}
	return nil
}

type TransferType int

const (
	TransferNormal TransferType = iota
	TransferTimed
	TransferMinTime
	TransferImpossible
)

type Transfer struct {
	FromStop        common.DBID
	ToStop          common.DBID
	Type            TransferType
	MinTransferTime int // seconds
}

func (t *Transfer) CheckConsistency() error {
	if t.Type < TransferNormal || t.Type > TransferImpossible {
		return fmt.Errorf("transfer %d -> %d: unknown type %d: %w", t.FromStop, t.ToStop, t.Type, common.ErrInconsistent)
	}
	if t.MinTransferTime <= 0 {
		return fmt.Errorf("transfer %d -> %d: min transfer time must be positive: %w", t.FromStop, t.ToStop, common.ErrInconsistent)
	}
	return nil
}

// Timetable groups the schedule of one network.
type Timetable struct {
	Calendars map[common.DBID]*Calendar
	Routes    map[common.DBID]*Route
	Trips     map[common.DBID]*Trip
	Fares     []*FareAttribute
	Transfers []*Transfer
}

func NewTimetable() *Timetable {
	return &Timetable{
		Calendars: make(map[common.DBID]*Calendar),
		Routes:    make(map[common.DBID]*Route),
		Trips:     make(map[common.DBID]*Trip),
	}
}

func (tt *Timetable) CheckConsistency() error {
	var checkers []common.Checker
	for _, c := range tt.Calendars {
		checkers = append(checkers, c)
	}
	for _, r := range tt.Routes {
		checkers = append(checkers, r)
	}
	for _, t := range tt.Trips {
		checkers = append(checkers, t)
	}
	for _, f := range tt.Fares {
		checkers = append(checkers, f)
	}
	for _, t := range tt.Transfers {
		checkers = append(checkers, t)
	}
	return common.CheckAll(checkers...)
}

// Departure is a scheduled departure of a trip from a stop.
type Departure struct {
	Trip common.DBID
	Time common.Time
}

// NextDeparture finds the earliest departure from stop not before the given
// moment among trips whose service runs that day.
func (tt *Timetable) NextDeparture(stop common.DBID, at time.Time) (Departure, bool) {
	day := common.DateOf(at)
	now := common.Time(at.Hour()*3600 + at.Minute()*60 + at.Second())

	var candidates []Departure
	for _, t := range tt.Trips {
		if t.Service == nil || !t.Service.Active(day) {
			continue
		}
		for _, d := range t.Departures(stop) {
			if d >= now {
				candidates = append(candidates, Departure{Trip: t.DBID, Time: d})
			}
		}
	}
	if len(candidates) == 0 {
		return Departure{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Time != candidates[j].Time {
			return candidates[i].Time < candidates[j].Time
		}
		return candidates[i].Trip < candidates[j].Trip
	})
	return candidates[0], true
}
