package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bktrader/internal/engine"
	"bktrader/internal/model"
	"bktrader/internal/quote"
	"bktrader/internal/replay"
	"bktrader/internal/saver"
	"bktrader/internal/session"
	"bktrader/internal/store"
)

// Deps bundles what the run flows need.
type Deps struct {
	Store     store.Store
	Engine    *engine.Engine
	Quotes    *quote.Source
	Estimator session.Estimator
	Saver     saver.PacketSaver // nil: no export
	ExportDir string
}

// RunBacktest replays code over [start, end] through stg, exporting the bars
// when a saver is configured.
func RunBacktest(ctx context.Context, d Deps, code uint32, start, end time.Time, stg engine.Strategy) (engine.Summary, error) {
	src, err := replay.NewHistoryReplayer(ctx, start, end, code, d.Store)
	if err != nil {
		return engine.Summary{}, err
	}
	stg, flush := withRecorder(d, stg)
	sum, err := d.Engine.Run(ctx, src, stg)
	if err != nil {
		return sum, err
	}
	return sum, flush()
}

// RunBatch replays codes with one query and returns the per-code tallies.
func RunBatch(ctx context.Context, d Deps, codes []uint32, start, end time.Time, stg engine.Strategy) ([]CodeSummary, error) {
	src, err := replay.NewBatchReplayer(ctx, start, end, codes, d.Store)
	if err != nil {
		return nil, err
	}
	groups := &GroupCounts{}
	stg, flush := withRecorder(d, Tee(groups, stg))
	sum, err := d.Engine.Run(ctx, src, stg)
	if err != nil {
		return groups.Summaries(), err
	}

	seen := make(map[uint32]bool, len(groups.Summaries()))
	for _, s := range groups.Summaries() {
		seen[s.Code] = true
		slog.Info("code replayed", "run_id", sum.RunID, "code", s.Code, "bars", s.Bars,
			"first", model.FormatDay(s.First), "last", model.FormatDay(s.Last))
	}
	var missing []uint32
	for _, c := range src.Codes {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		slog.Warn("codes without bars in range", "run_id", sum.RunID, "codes", missing)
	}
	if d.ExportDir != "" {
		if err := writeRunReport(d.ExportDir, groups.Summaries(), missing); err != nil {
			slog.Warn("could not write run report", "error", err)
		}
	}
	return groups.Summaries(), flush()
}

// RunLive fetches a snapshot, replays code from start through yesterday
// (exchange time) and then feeds the reconciled live bar.
func RunLive(ctx context.Context, d Deps, code uint32, start, now time.Time, stg engine.Strategy) (engine.Summary, error) {
	if _, err := d.Quotes.Update(ctx); err != nil {
		return engine.Summary{}, err
	}
	if d.Estimator.Location != nil {
		now = now.In(d.Estimator.Location)
	}
	yesterday := now.AddDate(0, 0, -1)
	src, err := replay.NewHistoryReplayer(ctx, start, yesterday, code, d.Store)
	if err != nil {
		return engine.Summary{}, err
	}
	stg, flush := withRecorder(d, stg)
	sum, err := d.Engine.RunLive(ctx, src, d.Quotes, code, stg)
	if err != nil {
		return sum, err
	}
	return sum, flush()
}

// RunQuote fetches a snapshot and writes the reconciled bar of each code as a
// JSON line to w. With no codes, every quote of the snapshot is written.
// Codes that are pre-open, absent or without usable history are logged and skipped.
// All codes are reconciled over one store connection.
func RunQuote(ctx context.Context, d Deps, codes []uint32, w io.Writer) (int, error) {
	estimates, err := d.Quotes.Update(ctx)
	if err != nil {
		return 0, err
	}
	if len(codes) == 0 {
		for _, e := range estimates {
			codes = append(codes, e.Live.Code)
		}
	}
	quotes, err := d.Quotes.GetQuotes(ctx, codes)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	written := 0
	for _, q := range quotes {
		if q.Err != nil {
			slog.Warn("no live quote", "code", q.Code, "error", q.Err)
			continue
		}
		if err := enc.Encode(q.Bar); err != nil {
			return written, fmt.Errorf("write quote %d: %w", q.Code, err)
		}
		written++
	}
	return written, nil
}

func withRecorder(d Deps, stg engine.Strategy) (engine.Strategy, func() error) {
	if d.Saver == nil {
		return stg, func() error { return nil }
	}
	rec := NewRecorder(d.Saver, d.ExportDir)
	return Tee(stg, rec), func() error {
		_, err := rec.Flush()
		return err
	}
}

// LogStrategy logs every bar at debug level. It is the default strategy of the commands.
func LogStrategy(logger *slog.Logger) engine.Strategy {
	return engine.StrategyFunc(func(bar model.Bar) error {
		logger.Debug("bar", "code", bar.Code, "date", model.FormatDay(bar.Dt), "close", bar.Close, "volume", bar.Volume)
		return nil
	})
}
