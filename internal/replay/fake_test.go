package replay

import (
	"context"
	"io"

	"bktrader/internal/store"
)

func ptr[T any](v T) *T { return &v }

func row(code uint32, dt int32, price float64) store.Row {
	return store.Row{
		Code: code, Dt: dt, Preclose: ptr(price),
		Open: price, High: price, Low: price, Close: price,
		Volume: 10, Amount: 10 * price, AdjFactor: 10000,
	}
}

// fakeStore serves rows as given (no filtering or sorting) and counts lifecycle calls.
type fakeStore struct {
	rows       []store.Row
	openErr    error
	queryErr   error
	fetchErr   error // returned instead of the row at failAt
	failAt     int
	closeErr   error
	lastQuery  store.Query
	opens      int
	connCloses int
	curCloses  int
	fetches    int
}

func (f *fakeStore) Name() string { return "fake" }

func (f *fakeStore) Open(ctx context.Context) (store.Conn, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	return &fakeConn{f: f}, nil
}

type fakeConn struct{ f *fakeStore }

func (c *fakeConn) Query(ctx context.Context, q store.Query) (store.Cursor, error) {
	c.f.lastQuery = q
	if c.f.queryErr != nil {
		return nil, c.f.queryErr
	}
	return &fakeCursor{f: c.f}, nil
}

func (c *fakeConn) Latest(ctx context.Context, code uint32) (store.Latest, error) {
	return store.Latest{}, store.ErrNoHistory
}

func (c *fakeConn) Close() error {
	c.f.connCloses++
	return c.f.closeErr
}

type fakeCursor struct {
	f   *fakeStore
	pos int
}

func (c *fakeCursor) Next(ctx context.Context) (store.Row, error) {
	c.f.fetches++
	if c.f.fetchErr != nil && c.pos == c.f.failAt {
		return store.Row{}, c.f.fetchErr
	}
	if c.pos >= len(c.f.rows) {
		return store.Row{}, io.EOF
	}
	r := c.f.rows[c.pos]
	c.pos++
	return r, nil
}

func (c *fakeCursor) Close() error {
	c.f.curCloses++
	return nil
}
