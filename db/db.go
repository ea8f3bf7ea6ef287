// Package db wraps database/sql with a materialized result API used by the
// importer and by services.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"tempus/utils/timer"
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrOutOfRange        = errors.New("index out of range")
)

// Supported drivers, names match configuration values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite", nil
	}
	return "", fmt.Errorf("%q: %w", driver, ErrUnsupportedDriver)
}

// Connection serializes access to a database, one query runs at a time.
type Connection struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
	log    *zap.Logger
}

// Connect opens the database and checks it is reachable.
func Connect(ctx context.Context, driver, dsn string, log *zap.Logger) (*Connection, error) {
	if log == nil {
		log = zap.NewNop()
	}
	name, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// in-memory databases exist per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to %s database: %w", driver, err)
	}
	log.Debug("Database connected", zap.String("driver", driver))
	return &Connection{db: db, driver: driver, log: log.Named("db")}, nil
}

func (c *Connection) Driver() string {
	return c.driver
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Exec runs a query and loads every row in memory.
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, ErrNotConnected
	}

	t := timer.New()
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	res, err := collect(rows)
	if err != nil {
		return nil, err
	}
	c.log.Debug("Query", zap.String("sql", query), zap.Int("rows", res.Size()), zap.Float64("ms", t.ElapsedMs()))
	return res, nil
}

// ExecStatement runs a statement which returns no rows.
func (c *Connection) ExecStatement(ctx context.Context, query string, args ...any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return 0, ErrNotConnected
	}

	t := timer.New()
	r, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		// not every driver reports it
		n = -1
	}
	c.log.Debug("Statement", zap.String("sql", query), zap.Int64("affected", n), zap.Float64("ms", t.ElapsedMs()))
	return n, nil
}

// ExecIt runs a query and returns an iterator over its rows. The connection
// stays locked until the iterator is closed.
func (c *Connection) ExecIt(ctx context.Context, query string, args ...any) (*Rows, error) {
	c.mu.Lock()
	if c.db == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("query failed: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		c.mu.Unlock()
		return nil, err
	}
	return &Rows{rows: rows, columns: cols, unlock: c.mu.Unlock}, nil
}

func collect(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{columns: cols}
	for rows.Next() {
		row, err := scanRow(rows, len(cols))
		if err != nil {
			return nil, err
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return res, nil
}

func scanRow(rows *sql.Rows, n int) (Row, error) {
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	row := make(Row, n)
	for i, v := range raw {
		row[i] = Value{raw: v}
	}
	return row, nil
}
