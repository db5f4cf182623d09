// Package reconcile maps raw live quotes onto the back-adjusted price scale of the store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"bktrader/internal/model"
	"bktrader/internal/store"
)

// ErrBadHistory marks a stored last row that cannot anchor a factor (close or factor not positive).
var ErrBadHistory = errors.New("stored last row unusable for reconciliation")

// DefaultTolerance is the relative tolerance used to decide that a live
// preclose equals the last stored close.
const DefaultTolerance = 1e-9

// Live is one raw quote with volume and amount already extrapolated to a full day.
type Live struct {
	Code     uint32
	Dt       int32
	Preclose float64
	Open     float64
	High     float64
	Low      float64
	Last     float64
	Volume   float64 // predicted, store units
	Amount   float64 // predicted
	IOPV     float64 // 0 when the feed has none
}

// Reconciler builds adjusted synthetic bars from live quotes.
type Reconciler struct {
	store     store.Store
	tolerance float64
	logger    *slog.Logger
}

// New returns a reconciler reading factors from st. Pass logger nil to use slog.Default().
func New(st store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: st, tolerance: DefaultTolerance, logger: logger}
}

// WithTolerance returns a copy using rel as relative tolerance.
func (r *Reconciler) WithTolerance(rel float64) *Reconciler {
	c := *r
	c.tolerance = rel
	return &c
}

// Reconcile looks up the latest stored factor of q.Code and returns the adjusted bar.
// It fails with store.ErrNoHistory when the code was never stored.
func (r *Reconciler) Reconcile(ctx context.Context, q Live) (bar model.Bar, err error) {
	conn, err := r.store.Open(ctx)
	if err != nil {
		return model.Bar{}, err
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()
	return r.reconcileOn(ctx, conn, q)
}

// Result is the outcome of one quote of a batch.
type Result struct {
	Bar model.Bar
	Err error
}

// ReconcileAll reconciles qs over a single store connection. Missing or
// unusable history is reported per quote in Result.Err; any other store
// failure aborts the batch.
func (r *Reconciler) ReconcileAll(ctx context.Context, qs []Live) (out []Result, err error) {
	if len(qs) == 0 {
		return nil, nil
	}
	conn, err := r.store.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	out = make([]Result, len(qs))
	for i, q := range qs {
		bar, err := r.reconcileOn(ctx, conn, q)
		if err != nil && !errors.Is(err, store.ErrNoHistory) && !errors.Is(err, ErrBadHistory) {
			return nil, err
		}
		out[i] = Result{Bar: bar, Err: err}
	}
	return out, nil
}

func (r *Reconciler) reconcileOn(ctx context.Context, conn store.Conn, q Live) (model.Bar, error) {
	latest, err := conn.Latest(ctx, q.Code)
	if err != nil {
		return model.Bar{}, fmt.Errorf("reconcile %d: %w", q.Code, err)
	}
	factor, err := EffectiveFactor(latest, q.Preclose, r.tolerance)
	if err != nil {
		return model.Bar{}, fmt.Errorf("reconcile %d: %w", q.Code, err)
	}
	if factor != latest.AdjFactor {
		r.logger.Info("corporate action since last stored bar",
			"code", q.Code,
			"last_dt", model.FormatDay(latest.Dt),
			"last_close", latest.Close,
			"preclose", q.Preclose,
			"factor", latest.AdjFactor,
			"effective_factor", factor,
		)
	}
	return Apply(q, factor), nil
}

// EffectiveFactor returns the stored factor when precloseRaw matches the last stored
// close, and otherwise chains a new factor so that precloseRaw lands on the
// adjusted last close. A stored row with a non-positive close or factor is
// rejected with ErrBadHistory.
func EffectiveFactor(latest store.Latest, precloseRaw, tolerance float64) (float64, error) {
	if !(latest.Close > 0) || !(latest.AdjFactor > 0) {
		return 0, fmt.Errorf("code %d on %s: close %v factor %v: %w",
			latest.Code, model.FormatDay(latest.Dt), latest.Close, latest.AdjFactor, ErrBadHistory)
	}
	if isClose(precloseRaw, latest.Close, tolerance) || precloseRaw == 0 {
		return latest.AdjFactor, nil
	}
	return latest.Close / precloseRaw * latest.AdjFactor, nil
}

// Apply adjusts the quote with factor. Volume is carried through as is.
func Apply(q Live, factor float64) model.Bar {
	b := model.Bar{
		Code:     q.Code,
		Dt:       q.Dt,
		Preclose: model.Adjust(q.Preclose, factor),
		Open:     model.Adjust(q.Open, factor),
		High:     model.Adjust(q.High, factor),
		Low:      model.Adjust(q.Low, factor),
		Close:    model.Adjust(q.Last, factor),
		Volume:   q.Volume,
		Amount:   model.Adjust(q.Amount, factor),
	}
	if q.IOPV > 0 {
		b.Netvalue = model.Adjust(q.IOPV, factor)
	}
	return b
}

// isClose mirrors math.isclose with a relative tolerance and a tiny absolute floor.
func isClose(a, b, rel float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	return diff <= rel*math.Max(math.Abs(a), math.Abs(b)) || diff <= 1e-12
}
