package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"bktrader/internal/model"
	"bktrader/internal/store"
)

// ErrOutOfOrder is returned when the store yields rows that break (code, dt) ordering.
var ErrOutOfOrder = errors.New("rows out of order")

// cursorSource owns one store connection and one cursor for its whole life.
type cursorSource struct {
	conn   store.Conn
	cursor store.Cursor
	closed bool

	started  bool
	lastCode uint32
	lastDt   int32
}

// openCursor acquires a connection and runs q. On failure nothing is left open.
func openCursor(ctx context.Context, st store.Store, q store.Query) (*cursorSource, error) {
	conn, err := st.Open(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := conn.Query(ctx, q)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s query: %w", st.Name(), err), conn.Close())
	}
	return &cursorSource{conn: conn, cursor: cur}, nil
}

// Next fetches the next row. Exhaustion and fetch errors release the connection;
// a release failure is joined after the fetch error so the cause stays first.
func (s *cursorSource) Next(ctx context.Context) (model.Bar, error) {
	if s.closed {
		return model.Bar{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return model.Bar{}, errors.Join(err, s.Close())
	}
	for {
		row, err := s.cursor.Next(ctx)
		if errors.Is(err, io.EOF) {
			if cerr := s.Close(); cerr != nil {
				return model.Bar{}, cerr
			}
			return model.Bar{}, io.EOF
		}
		if err != nil {
			return model.Bar{}, errors.Join(err, s.Close())
		}
		if row.Preclose == nil {
			continue
		}
		if s.started && (row.Code < s.lastCode || (row.Code == s.lastCode && row.Dt <= s.lastDt)) {
			err := fmt.Errorf("%w: (%d, %s) after (%d, %s)", ErrOutOfOrder,
				row.Code, model.FormatDay(row.Dt), s.lastCode, model.FormatDay(s.lastDt))
			return model.Bar{}, errors.Join(err, s.Close())
		}
		s.started, s.lastCode, s.lastDt = true, row.Code, row.Dt
		return row.Bar(), nil
	}
}

// Close releases the cursor then the connection, once.
func (s *cursorSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.cursor.Close(), s.conn.Close())
}

// HistoryReplayer replays one code over a date range, oldest first.
type HistoryReplayer struct {
	*cursorSource
	Code uint32
}

// NewHistoryReplayer opens the store and queries code over [start, end] (calendar dates).
func NewHistoryReplayer(ctx context.Context, start, end time.Time, code uint32, st store.Store) (*HistoryReplayer, error) {
	src, err := openCursor(ctx, st, store.Query{
		Codes: []uint32{code},
		Start: model.DayIndex(start),
		End:   model.DayIndex(end),
	})
	if err != nil {
		return nil, err
	}
	return &HistoryReplayer{cursorSource: src, Code: code}, nil
}
