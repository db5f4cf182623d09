// Package parquetstore serves historical bars from a single parquet file
// with one row per (code, dt) and an adjfactor column.
package parquetstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/parquet-go/parquet-go"

	"bktrader/internal/store"
)

const (
	name = "parquet"

	// rows decoded per read call
	defaultBatchSize = 4096

	factorColumn = "adjfactor"
)

// Store is a parquet-file backed store.Store.
type Store struct {
	path      string
	batchSize int
}

// New returns a store reading path. The file is only touched by Open.
func New(path string) *Store {
	return &Store{path: path, batchSize: defaultBatchSize}
}

func (s *Store) Name() string { return name }

// Open opens the file and checks it carries the adjustment factor column.
func (s *Store) Open(ctx context.Context) (store.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.path == "" {
		return nil, &store.ConfigError{Store: name, Reason: "empty store path"}
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &store.ConfigError{Store: name, Reason: "open " + s.path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &store.ConfigError{Store: name, Reason: "stat " + s.path, Err: err}
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		f.Close()
		return nil, &store.ConfigError{Store: name, Reason: "read parquet footer of " + s.path, Err: err}
	}
	if _, ok := pf.Schema().Lookup(factorColumn); !ok {
		f.Close()
		return nil, &store.ConfigError{Store: name, Reason: "no " + factorColumn + " column in " + s.path, Err: store.ErrMissingCapability}
	}
	return &conn{f: f, batchSize: s.batchSize}, nil
}

type conn struct {
	f         *os.File
	batchSize int
	closed    bool
	scans     int
	latest    map[uint32]store.Latest // built on the first Latest call
}

// scan decodes every row of the file and passes it to fn.
func (c *conn) scan(ctx context.Context, fn func(store.Row)) error {
	if c.closed {
		return errors.New("parquet store: connection closed")
	}
	c.scans++
	reader := parquet.NewGenericReader[store.Row](c.f)
	defer reader.Close()

	buf := make([]store.Row, c.batchSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := reader.Read(buf)
		for i := range buf[:n] {
			fn(buf[i])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read rows: %w", err)
		}
	}
}

// Query filters the file and sorts the matches by (code, dt).
func (c *conn) Query(ctx context.Context, q store.Query) (store.Cursor, error) {
	var rows []store.Row
	err := c.scan(ctx, func(r store.Row) {
		if q.Contains(r) {
			rows = append(rows, detach(r))
		}
	})
	if err != nil {
		return nil, err
	}
	SortRows(rows)
	return &cursor{rows: rows}, nil
}

// Latest returns the highest-dt row of code. The first call indexes the last
// row of every code in one pass; later calls on the same connection reuse it.
func (c *conn) Latest(ctx context.Context, code uint32) (store.Latest, error) {
	if c.closed {
		return store.Latest{}, errors.New("parquet store: connection closed")
	}
	if c.latest == nil {
		index := make(map[uint32]store.Latest)
		err := c.scan(ctx, func(r store.Row) {
			if l, ok := index[r.Code]; ok && r.Dt <= l.Dt {
				return
			}
			index[r.Code] = store.Latest{Code: r.Code, Dt: r.Dt, Close: r.Close, AdjFactor: r.AdjFactor}
		})
		if err != nil {
			return store.Latest{}, err
		}
		c.latest = index
	}
	latest, ok := c.latest[code]
	if !ok {
		return store.Latest{}, fmt.Errorf("code %d: %w", code, store.ErrNoHistory)
	}
	return latest, nil
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.f.Close()
}

// cursor serves the sorted matches of one query.
type cursor struct {
	rows []store.Row
	pos  int
}

func (c *cursor) Next(ctx context.Context) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return store.Row{}, err
	}
	if c.pos >= len(c.rows) {
		return store.Row{}, io.EOF
	}
	r := c.rows[c.pos]
	c.pos++
	return r, nil
}

func (c *cursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}

// detach copies the nullable fields so the row does not alias the reader buffer.
func detach(r store.Row) store.Row {
	if r.Preclose != nil {
		v := *r.Preclose
		r.Preclose = &v
	}
	if r.Netvalue != nil {
		v := *r.Netvalue
		r.Netvalue = &v
	}
	if r.TradesCount != nil {
		v := *r.TradesCount
		r.TradesCount = &v
	}
	return r
}

// SortRows orders rows by (code, dt) ascending.
func SortRows(rows []store.Row) {
	slices.SortFunc(rows, func(a, b store.Row) int {
		if c := cmp.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		return cmp.Compare(a.Dt, b.Dt)
	})
}

// WriteFile writes rows to path sorted by (code, dt). Used to build store files and fixtures.
func WriteFile(path string, rows []store.Row) error {
	sorted := slices.Clone(rows)
	SortRows(sorted)
	return parquet.WriteFile(path, sorted)
}
