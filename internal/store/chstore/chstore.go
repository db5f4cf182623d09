// Package chstore serves historical bars from a ClickHouse table.
package chstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"bktrader/internal/model"
	"bktrader/internal/store"
)

const (
	name         = "clickhouse"
	factorColumn = "adjfactor"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options locates the bar table.
type Options struct {
	Addr        string
	Database    string
	Table       string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Store is a ClickHouse backed store.Store. Each Open dials a dedicated connection.
type Store struct {
	opts Options
}

// New validates opts and returns the store. No connection is made.
func New(opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, &store.ConfigError{Store: name, Reason: "empty address"}
	}
	if !identRe.MatchString(opts.Database) || !identRe.MatchString(opts.Table) {
		return nil, &store.ConfigError{Store: name, Reason: fmt.Sprintf("invalid table %q.%q", opts.Database, opts.Table)}
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 10 * time.Second
	}
	return &Store{opts: opts}, nil
}

func (s *Store) Name() string { return name }

// Open dials, pings and checks that the table carries the factor column.
func (s *Store) Open(ctx context.Context) (store.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{s.opts.Addr},
		Auth: clickhouse.Auth{
			Database: s.opts.Database,
			Username: s.opts.Username,
			Password: s.opts.Password,
		},
		DialTimeout: s.opts.DialTimeout,
		Settings: clickhouse.Settings{
			"max_execution_time": uint64(0),
		},
	})
	if err != nil {
		return nil, &store.ConfigError{Store: name, Reason: "open " + s.opts.Addr, Err: err}
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, &store.ConfigError{Store: name, Reason: "ping " + s.opts.Addr, Err: err}
	}
	var n uint64
	err = conn.QueryRow(ctx,
		"SELECT count() FROM system.columns WHERE database = ? AND table = ? AND name = ?",
		s.opts.Database, s.opts.Table, factorColumn,
	).Scan(&n)
	if err != nil {
		conn.Close()
		return nil, &store.ConfigError{Store: name, Reason: "inspect columns", Err: err}
	}
	if n == 0 {
		conn.Close()
		return nil, &store.ConfigError{
			Store:  name,
			Reason: fmt.Sprintf("no %s column in %s.%s", factorColumn, s.opts.Database, s.opts.Table),
			Err:    store.ErrMissingCapability,
		}
	}
	return &chConn{conn: conn, table: s.opts.Database + "." + s.opts.Table}, nil
}

type chConn struct {
	conn   driver.Conn
	table  string
	closed bool
}

func (c *chConn) Query(ctx context.Context, q store.Query) (store.Cursor, error) {
	if len(q.Codes) == 0 {
		return &emptyCursor{}, nil
	}
	rows, err := c.conn.Query(ctx, buildQuery(c.table, q.Codes), model.FormatDay(q.Start), model.FormatDay(q.End))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.table, err)
	}
	return &cursor{rows: rows}, nil
}

func (c *chConn) Latest(ctx context.Context, code uint32) (store.Latest, error) {
	l := store.Latest{Code: code}
	err := c.conn.QueryRow(ctx, buildLatestQuery(c.table), code).Scan(&l.Dt, &l.Close, &l.AdjFactor)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Latest{}, fmt.Errorf("code %d: %w", code, store.ErrNoHistory)
	}
	if err != nil {
		return store.Latest{}, fmt.Errorf("latest factor of %d: %w", code, err)
	}
	return l, nil
}

func (c *chConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

const dayIndexExpr = "toInt32(dateDiff('day', toDate('1970-01-01'), dt))"

// buildQuery renders the projection for codes. Codes are integers and are inlined.
func buildQuery(table string, codes []uint32) string {
	list := make([]string, len(codes))
	for i, c := range codes {
		list[i] = strconv.FormatUint(uint64(c), 10)
	}
	return fmt.Sprintf(`SELECT
    toUInt32(code),
    %s AS days_since_epoch,
    CAST(preclose AS Nullable(Float64)),
    toFloat64(open),
    toFloat64(high),
    toFloat64(low),
    toFloat64(close),
    CAST(netvalue AS Nullable(Float64)),
    toFloat64(volume),
    toFloat64(amount),
    CAST(trades_count AS Nullable(Int64)),
    toFloat64(turnover),
    toFloat64(adjfactor)
FROM %s
WHERE preclose IS NOT NULL
    AND code IN (%s)
    AND dt BETWEEN toDate(?) AND toDate(?)
ORDER BY code ASC, dt ASC`, dayIndexExpr, table, strings.Join(list, ","))
}

func buildLatestQuery(table string) string {
	return fmt.Sprintf(`SELECT %s, toFloat64(close), toFloat64(adjfactor)
FROM %s
WHERE code = ?
ORDER BY dt DESC
LIMIT 1`, dayIndexExpr, table)
}

// rowScanner is the part of driver.Rows the cursor uses.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

var _ rowScanner = driver.Rows(nil)

// cursor scans the projection of buildQuery; the target order matches its columns.
type cursor struct {
	rows rowScanner
}

func (c *cursor) Next(ctx context.Context) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return store.Row{}, err
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return store.Row{}, fmt.Errorf("fetch row: %w", err)
		}
		return store.Row{}, io.EOF
	}
	var r store.Row
	err := c.rows.Scan(
		&r.Code, &r.Dt, &r.Preclose,
		&r.Open, &r.High, &r.Low, &r.Close,
		&r.Netvalue, &r.Volume, &r.Amount,
		&r.TradesCount, &r.Turnover, &r.AdjFactor,
	)
	if err != nil {
		return store.Row{}, fmt.Errorf("scan row: %w", err)
	}
	return r, nil
}

func (c *cursor) Close() error { return c.rows.Close() }

type emptyCursor struct{}

func (emptyCursor) Next(context.Context) (store.Row, error) { return store.Row{}, io.EOF }
func (emptyCursor) Close() error                           { return nil }
