package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"tempus/common"
)

// Result is a fully loaded query result.
type Result struct {
	columns []string
	rows    []Row
}

func (r *Result) Size() int {
	return len(r.rows)
}

func (r *Result) Columns() []string {
	return r.columns
}

func (r *Result) Row(i int) (Row, error) {
	if i < 0 || i >= len(r.rows) {
		return nil, fmt.Errorf("row %d of %d: %w", i, len(r.rows), ErrOutOfRange)
	}
	return r.rows[i], nil
}

// Value returns field j of row i.
func (r *Result) Value(i, j int) (Value, error) {
	row, err := r.Row(i)
	if err != nil {
		return Value{}, err
	}
	return row.Value(j)
}

// Rows returns every row.
func (r *Result) Rows() []Row {
	return r.rows
}

type Row []Value

func (r Row) Value(j int) (Value, error) {
	if j < 0 || j >= len(r) {
		return Value{}, fmt.Errorf("column %d of %d: %w", j, len(r), ErrOutOfRange)
	}
	return r[j], nil
}

// Value is a single field as returned by the driver.
type Value struct {
	raw any
}

func (v Value) IsNull() bool {
	return v.raw == nil
}

// Raw returns the driver value unchanged.
func (v Value) Raw() any {
	return v.raw
}

func (v Value) String() (string, error) {
	switch x := v.raw.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case time.Time:
		return x.Format(time.RFC3339), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func (v Value) Int64() (int64, error) {
	switch x := v.raw.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string, []byte:
		s, _ := v.String()
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer: %w", s, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("value of type %T is not an integer", v.raw)
}

func (v Value) Int() (int, error) {
	n, err := v.Int64()
	return int(n), err
}

func (v Value) Float() (float64, error) {
	switch x := v.raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string, []byte:
		s, _ := v.String()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number: %w", s, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("value of type %T is not a number", v.raw)
}

// Bool accepts native booleans, integers and the PostgreSQL text forms.
func (v Value) Bool() (bool, error) {
	switch x := v.raw.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case string, []byte:
		s, _ := v.String()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "t", "true", "1", "y", "yes", "on":
			return true, nil
		case "f", "false", "0", "n", "no", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("value %q is not a boolean", s)
	}
	return false, fmt.Errorf("value of type %T is not a boolean", v.raw)
}

// Time reads a "HH:MM:SS" field or a timestamp.
func (v Value) Time() (common.Time, error) {
	if t, ok := v.raw.(time.Time); ok {
		return common.Time(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
	}
	s, err := v.String()
	if err != nil {
		return 0, err
	}
	return common.ParseTime(s)
}

// Date reads a DATE field or its text form.
func (v Value) Date() (common.Date, error) {
	if t, ok := v.raw.(time.Time); ok {
		return common.DateOf(t), nil
	}
	s, err := v.String()
	if err != nil {
		return common.Date{}, err
	}
	return common.ParseDate(s)
}

// Int64s reads an integer array, either in PostgreSQL text form "{1,2}" or
// as a comma separated list.
func (v Value) Int64s() ([]int64, error) {
	if v.IsNull() {
		return nil, nil
	}
	if list, ok := v.raw.([]any); ok {
		out := make([]int64, 0, len(list))
		for _, it := range list {
			n, err := Value{raw: it}.Int64()
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	s, err := v.String()
	if err != nil {
		return nil, err
	}
	s = strings.Trim(strings.TrimSpace(s), "{}")
	if s == "" {
		return nil, nil
	}
	var out []int64
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed integer list %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Scan stores the value into dst which must be a pointer to bool, int,
// int64, float64, string, common.Time or common.Date. A NULL value leaves dst untouched.
func (v Value) Scan(dst any) error {
	if v.IsNull() {
		return nil
	}
	var err error
	switch d := dst.(type) {
	case *bool:
		*d, err = v.Bool()
	case *int:
		*d, err = v.Int()
	case *int64:
		*d, err = v.Int64()
	case *float64:
		*d, err = v.Float()
	case *string:
		*d, err = v.String()
	case *common.Time:
		*d, err = v.Time()
	case *common.Date:
		*d, err = v.Date()
	default:
		err = fmt.Errorf("unsupported scan destination %T", dst)
	}
	return err
}

// ScanRow scans consecutive fields of a row into destinations.
func ScanRow(row Row, dst ...any) error {
	if len(dst) > len(row) {
		return fmt.Errorf("%d destinations for %d columns: %w", len(dst), len(row), ErrOutOfRange)
	}
	var err error
	for i, d := range dst {
		if d == nil {
			continue
		}
		if e := row[i].Scan(d); e != nil {
			err = multierr.Append(err, fmt.Errorf("column %d: %w", i, e))
		}
	}
	return err
}

// Rows iterates over a streaming result.
type Rows struct {
	rows    *sql.Rows
	columns []string
	current Row
	err     error
	unlock  func()
}

func (r *Rows) Columns() []string {
	return r.columns
}

func (r *Rows) Next() bool {
	if r.err != nil || r.rows == nil {
		return false
	}
	if !r.rows.Next() {
		return false
	}
	r.current, r.err = scanRow(r.rows, len(r.columns))
	return r.err == nil
}

func (r *Rows) Row() Row {
	return r.current
}

func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

// Close releases the result and the connection, it is safe to call twice.
func (r *Rows) Close() error {
	if r.rows == nil {
		return nil
	}
	err := r.rows.Close()
	r.rows = nil
	r.unlock()
	return err
}
