package replay

import (
	"context"
	"slices"
	"time"

	"bktrader/internal/model"
	"bktrader/internal/store"
)

// BatchReplayer replays many codes with a single store query. Bars arrive
// ordered by (code, dt); grouping them per code is left to the consumer.
type BatchReplayer struct {
	*cursorSource
	Codes []uint32
}

// NewBatchReplayer opens the store and queries codes over [start, end].
func NewBatchReplayer(ctx context.Context, start, end time.Time, codes []uint32, st store.Store) (*BatchReplayer, error) {
	codes = slices.Clone(codes)
	slices.Sort(codes)
	codes = slices.Compact(codes)
	src, err := openCursor(ctx, st, store.Query{
		Codes: codes,
		Start: model.DayIndex(start),
		End:   model.DayIndex(end),
	})
	if err != nil {
		return nil, err
	}
	return &BatchReplayer{cursorSource: src, Codes: codes}, nil
}
