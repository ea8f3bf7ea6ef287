package db

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"tempus/common"
)

func memory(t *testing.T) *Connection {
	t.Helper()

	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	c, err := Connect(context.Background(), DriverSQLite, ":memory:", log)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	for _, q := range []string{
		"CREATE TABLE sample (id INTEGER PRIMARY KEY, name TEXT, flag INTEGER, ratio REAL, at TEXT, sections TEXT)",
		"INSERT INTO sample VALUES (1, 'first', 1, 0.5, '08:30:00', '{10,11}')",
		"INSERT INTO sample VALUES (2, NULL, 0, NULL, NULL, NULL)",
		"INSERT INTO sample VALUES (3, 'third', 'f', 2, '23:59:59', '7')",
	} {
		if _, err := c.ExecStatement(context.Background(), q); err != nil {
			t.Fatalf("ExecStatement(%q) error = %v", q, err)
		}
	}
	return c
}

func TestExec(t *testing.T) {
	c := memory(t)

	res, err := c.Exec(context.Background(), "SELECT id, name, flag, ratio, at, sections FROM sample ORDER BY id")
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if res.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", res.Size())
	}
	if cols := res.Columns(); len(cols) != 6 || cols[1] != "name" {
		t.Errorf("Columns() = %v", cols)
	}

	row, err := res.Row(0)
	if err != nil {
		t.Fatal(err)
	}
	var (
		id       int64
		name     string
		flag     bool
		ratio    float64
		at       common.Time
		sections []int64
	)
	if err := ScanRow(row, &id, &name, &flag, &ratio, &at); err != nil {
		t.Fatalf("ScanRow() error = %v", err)
	}
	if id != 1 || name != "first" || !flag || ratio != 0.5 || at != 8*3600+30*60 {
		t.Errorf("row 0 = %d %q %v %f %d", id, name, flag, ratio, at)
	}
	if sections, err = row[5].Int64s(); err != nil || len(sections) != 2 || sections[1] != 11 {
		t.Errorf("Int64s() = %v, %v", sections, err)
	}

	// NULL leaves destinations untouched
	row, _ = res.Row(1)
	name, ratio = "keep", 42
	if err := ScanRow(row, nil, &name, &flag, &ratio); err != nil {
		t.Fatal(err)
	}
	if name != "keep" || ratio != 42 || flag {
		t.Errorf("NULL handling: name=%q ratio=%f flag=%v", name, ratio, flag)
	}
	if v, _ := res.Value(1, 1); !v.IsNull() {
		t.Error("IsNull() = false for NULL")
	}

	v, _ := res.Value(2, 2)
	if b, err := v.Bool(); err != nil || b {
		t.Errorf("Bool('f') = %v, %v", b, err)
	}
	v, _ = res.Value(2, 5)
	if s, err := v.Int64s(); err != nil || len(s) != 1 || s[0] != 7 {
		t.Errorf("Int64s('7') = %v, %v", s, err)
	}

	if _, err := res.Row(3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Row(3) error = %v", err)
	}
	if _, err := res.Value(0, 9); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Value(0, 9) error = %v", err)
	}
}

func TestValueConversionErrors(t *testing.T) {
	for _, v := range []Value{{raw: "abc"}, {raw: []byte("1.5x")}} {
		if _, err := v.Int64(); err == nil {
			t.Errorf("Int64(%v) accepted", v.raw)
		}
		if _, err := v.Float(); err == nil {
			t.Errorf("Float(%v) accepted", v.raw)
		}
		if _, err := v.Bool(); err == nil {
			t.Errorf("Bool(%v) accepted", v.raw)
		}
	}
	if err := (Value{raw: int64(1)}).Scan(new(complex128)); err == nil {
		t.Error("unsupported destination accepted")
	}
	if n, err := (Value{raw: []any{int64(3), "4"}}).Int64s(); err != nil || len(n) != 2 || n[1] != 4 {
		t.Errorf("Int64s([]any) = %v, %v", n, err)
	}
}

func TestExecIt(t *testing.T) {
	c := memory(t)

	it, err := c.ExecIt(context.Background(), "SELECT id FROM sample WHERE flag != 1 ORDER BY id")
	if err != nil {
		t.Fatalf("ExecIt() error = %v", err)
	}
	var ids []int64
	for it.Next() {
		id, err := it.Row()[0].Int64()
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	if err := it.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("ids = %v", ids)
	}

	// connection is usable again once the iterator is closed
	if _, err := c.Exec(context.Background(), "SELECT 1"); err != nil {
		t.Errorf("Exec() after iterator error = %v", err)
	}
}

func TestConnectErrors(t *testing.T) {
	if _, err := Connect(context.Background(), "oracle", "", nil); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("Connect(oracle) error = %v", err)
	}

	c := memory(t)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Exec(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Exec() after Close error = %v", err)
	}
	if _, err := c.ExecIt(context.Background(), "SELECT 1"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ExecIt() after Close error = %v", err)
	}
}
