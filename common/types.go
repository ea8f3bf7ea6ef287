// Package common defines basic types shared by graphs, requests and plugins.
package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DBID identifies an object in the database.
type DBID = int64

// Time is a number of seconds since midnight of the service day. Values
// greater than one day are legal for trips running past midnight.
type Time int

// ParseTime converts "HH:MM:SS" (or "HH:MM") into Time.
func ParseTime(s string) (Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed time %q", s)
	}
	var total int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed time %q", s)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("malformed time %q", s)
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		total *= 60
	}
	return Time(total), nil
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, (int(t)/60)%60, int(t)%60)
}

// Date is a calendar day without time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf drops the time of day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts both ISO ("2006-01-02") and GTFS ("20060102") forms.
func ParseDate(s string) (Date, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("malformed date %q", s)
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

type Point2D struct {
	X, Y float64
}

type Point3D struct {
	X, Y, Z float64
}

func (p Point3D) Point2D() Point2D {
	return Point2D{X: p.X, Y: p.Y}
}

// Distance2 returns squared euclidean distance.
func Distance2(a, b Point2D) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

func Distance(a, b Point2D) float64 {
	return math.Sqrt(Distance2(a, b))
}
