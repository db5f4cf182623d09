// Package replay turns store queries into pull-based sequences of adjusted bars.
package replay

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"

	"bktrader/internal/model"
)

// BarSource produces bars one at a time. Next returns io.EOF after the last bar
// and on every call after Close. Close releases any underlying resource and is idempotent.
type BarSource interface {
	Next(ctx context.Context) (model.Bar, error)
	Close() error
}

// All adapts src to a range-over-func sequence. The source is closed when the
// loop ends for any reason, including a break by the caller. A fetch error is
// yielded once and ends the sequence.
func All(ctx context.Context, src BarSource) iter.Seq2[model.Bar, error] {
	return func(yield func(model.Bar, error) bool) {
		defer func() {
			if err := src.Close(); err != nil {
				slog.Warn("close bar source", "error", err)
			}
		}()
		for {
			bar, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(model.Bar{}, err)
				return
			}
			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Collect drains src into a slice and closes it.
func Collect(ctx context.Context, src BarSource) ([]model.Bar, error) {
	var bars []model.Bar
	for bar, err := range All(ctx, src) {
		if err != nil {
			return bars, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
