package store

import (
	"context"

	"bktrader/internal/model"
)

// Store is the read-only handle to a historical bar store.
// It holds no connection itself: every Open acquires a fresh one that the caller owns.
type Store interface {
	Name() string
	Open(ctx context.Context) (Conn, error)
}

// Conn is one exclusive connection to the store. Close releases it.
type Conn interface {
	// Query selects rows for q.Codes with dt in [q.Start, q.End] and non-null
	// preclose, ordered by (code, dt) ascending.
	Query(ctx context.Context, q Query) (Cursor, error)
	// Latest returns the most recent stored row for code, or ErrNoHistory.
	Latest(ctx context.Context, code uint32) (Latest, error)
	Close() error
}

// Cursor yields query rows one at a time. Next returns io.EOF once exhausted.
type Cursor interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Query is an inclusive day-index range over a set of codes.
type Query struct {
	Codes []uint32
	Start int32
	End   int32
}

// Row is one stored bar with raw prices and its fixed-point adjustment factor.
// Nullable columns are pointers.
type Row struct {
	Code        uint32   `parquet:"code"`
	Dt          int32    `parquet:"dt,date"`
	Preclose    *float64 `parquet:"preclose,optional"`
	Open        float64  `parquet:"open"`
	High        float64  `parquet:"high"`
	Low         float64  `parquet:"low"`
	Close       float64  `parquet:"close"`
	Netvalue    *float64 `parquet:"netvalue,optional"`
	Volume      float64  `parquet:"volume"`
	Amount      float64  `parquet:"amount"`
	TradesCount *int64   `parquet:"trades_count,optional"`
	Turnover    float64  `parquet:"turnover"`
	AdjFactor   float64  `parquet:"adjfactor"`
}

// Bar projects the row onto the back-adjusted scale. Volume and turnover stay raw,
// a missing netvalue or trades_count becomes 0.
func (r Row) Bar() model.Bar {
	f := r.AdjFactor
	b := model.Bar{
		Code:     r.Code,
		Dt:       r.Dt,
		Open:     model.Adjust(r.Open, f),
		High:     model.Adjust(r.High, f),
		Low:      model.Adjust(r.Low, f),
		Close:    model.Adjust(r.Close, f),
		Volume:   r.Volume,
		Amount:   model.Adjust(r.Amount, f),
		Turnover: r.Turnover,
	}
	if r.Preclose != nil {
		b.Preclose = model.Adjust(*r.Preclose, f)
	}
	if r.Netvalue != nil {
		b.Netvalue = model.Adjust(*r.Netvalue, f)
	}
	if r.TradesCount != nil {
		b.TradesCount = *r.TradesCount
	}
	return b
}

// Latest is the most recent stored close of a code together with its factor.
type Latest struct {
	Code      uint32
	Dt        int32
	Close     float64 // raw
	AdjFactor float64
}

// AdjClose returns the last close on the back-adjusted scale.
func (l Latest) AdjClose() float64 {
	return model.Adjust(l.Close, l.AdjFactor)
}

// Contains reports whether the row matches q (codes, range, non-null preclose).
func (q Query) Contains(r Row) bool {
	if r.Preclose == nil || r.Dt < q.Start || r.Dt > q.End {
		return false
	}
	for _, c := range q.Codes {
		if c == r.Code {
			return true
		}
	}
	return false
}
