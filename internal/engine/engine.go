// Package engine drives a strategy with bars from a replay source and,
// in live mode, one reconciled bar for the current session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bktrader/internal/model"
	"bktrader/internal/quote"
	"bktrader/internal/replay"
)

// Strategy receives bars in order. An error aborts the run.
type Strategy interface {
	OnBar(bar model.Bar) error
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(bar model.Bar) error

func (f StrategyFunc) OnBar(bar model.Bar) error { return f(bar) }

// LiveQuoter returns the reconciled bar of code for the current session.
type LiveQuoter interface {
	GetQuote(ctx context.Context, code uint32) (model.Bar, error)
}

// Summary describes a finished run.
type Summary struct {
	RunID string
	Bars  int
	First int32 // dt of the first bar, 0 when none
	Last  int32 // dt of the last bar, 0 when none
	Live  bool  // a live bar was delivered
}

// Engine is a sequential driver; it holds no per-run state.
type Engine struct {
	logger *slog.Logger
	newID  func() string
}

// New returns an engine logging to logger (nil: slog.Default()).
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, newID: uuid.NewString}
}

// Run feeds every bar of src to stg and closes src on return.
func (e *Engine) Run(ctx context.Context, src replay.BarSource, stg Strategy) (Summary, error) {
	sum := Summary{RunID: e.newID()}
	logger := e.logger.With("run_id", sum.RunID)
	start := time.Now()

	err := e.drain(ctx, src, stg, &sum)
	if err != nil {
		logger.Error("backtest aborted", "bars", sum.Bars, "error", err)
		return sum, err
	}
	logger.Info("backtest done", "bars", sum.Bars, "first", dayOrEmpty(sum.First), "last", dayOrEmpty(sum.Last), "elapsed", time.Since(start))
	return sum, nil
}

// RunLive replays src like Run, then delivers one reconciled bar for code.
// A quote taken before the session opened is skipped, as is a live bar that
// is not newer than the last replayed one.
func (e *Engine) RunLive(ctx context.Context, src replay.BarSource, quoter LiveQuoter, code uint32, stg Strategy) (Summary, error) {
	sum := Summary{RunID: e.newID()}
	logger := e.logger.With("run_id", sum.RunID, "code", code)

	if err := e.drain(ctx, src, stg, &sum); err != nil {
		logger.Error("live run aborted during replay", "bars", sum.Bars, "error", err)
		return sum, err
	}

	bar, err := quoter.GetQuote(ctx, code)
	switch {
	case errors.Is(err, quote.ErrPreOpen):
		logger.Info("session not open, no live bar", "bars", sum.Bars)
		return sum, nil
	case err != nil:
		return sum, fmt.Errorf("live quote %d: %w", code, err)
	}
	if sum.Bars > 0 && bar.Dt <= sum.Last {
		logger.Warn("live bar not newer than history, skipped", "live_dt", model.FormatDay(bar.Dt), "last_dt", model.FormatDay(sum.Last))
		return sum, nil
	}
	if err := stg.OnBar(bar); err != nil {
		return sum, fmt.Errorf("strategy on live bar %s: %w", model.FormatDay(bar.Dt), err)
	}
	sum.record(bar)
	sum.Live = true
	logger.Info("live run done", "bars", sum.Bars, "live_dt", model.FormatDay(bar.Dt), "close", bar.Close)
	return sum, nil
}

func (e *Engine) drain(ctx context.Context, src replay.BarSource, stg Strategy, sum *Summary) (err error) {
	defer func() {
		err = errors.Join(err, src.Close())
	}()
	for {
		bar, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := stg.OnBar(bar); err != nil {
			return fmt.Errorf("strategy on bar %d %s: %w", bar.Code, model.FormatDay(bar.Dt), err)
		}
		sum.record(bar)
	}
}

func (s *Summary) record(bar model.Bar) {
	if s.Bars == 0 {
		s.First = bar.Dt
	}
	s.Last = bar.Dt
	s.Bars++
}

func dayOrEmpty(dt int32) string {
	if dt == 0 {
		return ""
	}
	return model.FormatDay(dt)
}
