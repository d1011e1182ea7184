package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// NewLoggingConnector opens sqlite3 connections whose statements are logged
// at debug level with arguments, elapsed time and error. Pass the result to
// sql.OpenDB.
func NewLoggingConnector(dsn string, logger *slog.Logger) (driver.Connector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &connector{dsn: dsn, drv: &sqlite3.SQLiteDriver{}, logger: logger}, nil
}

type connector struct {
	dsn    string
	drv    *sqlite3.SQLiteDriver
	logger *slog.Logger
}

func (c *connector) Driver() driver.Driver { return c.drv }

func (c *connector) Connect(context.Context) (driver.Conn, error) {
	raw, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, err
	}
	sc, ok := raw.(*sqlite3.SQLiteConn)
	if !ok {
		_ = raw.Close()
		return nil, fmt.Errorf("db: unexpected sqlite3 connection %T", raw)
	}
	return &conn{SQLiteConn: sc, trace: tracer{c.logger}}, nil
}

// conn routes every entry point database/sql uses through the tracer.
type conn struct {
	*sqlite3.SQLiteConn
	trace tracer
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	res, err := c.SQLiteConn.ExecContext(ctx, query, args)
	c.trace.log("exec", query, args, start, err)
	return res, err
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	rows, err := c.SQLiteConn.QueryContext(ctx, query, args)
	c.trace.log("query", query, args, start, err)
	return rows, err
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	s, err := c.SQLiteConn.PrepareContext(ctx, query)
	if err != nil {
		c.trace.log("prepare", query, nil, time.Now(), err)
		return nil, err
	}
	return &stmt{Stmt: s, query: query, trace: c.trace}, nil
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

type stmt struct {
	driver.Stmt
	query string
	trace tracer
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	res, err := s.Stmt.(driver.StmtExecContext).ExecContext(ctx, args)
	s.trace.log("exec", s.query, args, start, err)
	return res, err
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	rows, err := s.Stmt.(driver.StmtQueryContext).QueryContext(ctx, args)
	s.trace.log("query", s.query, args, start, err)
	return rows, err
}

type tracer struct {
	logger *slog.Logger
}

func (t tracer) log(op, query string, args []driver.NamedValue, start time.Time, err error) {
	attrs := []any{
		"op", op,
		"sql", query,
		"args", formatArgs(args),
		"elapsed", time.Since(start),
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	t.logger.Debug("sql", attrs...)
}

func formatArgs(args []driver.NamedValue) []string {
	out := make([]string, len(args))
	for i, a := range args {
		v := "NULL"
		switch x := a.Value.(type) {
		case nil:
		case []byte:
			v = string(x)
		default:
			v = fmt.Sprint(x)
		}
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		out[i] = v
	}
	return out
}
