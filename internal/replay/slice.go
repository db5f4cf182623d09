package replay

import (
	"context"
	"io"

	"bktrader/internal/model"
)

// SliceSource is an in-memory BarSource over fixed bars.
type SliceSource struct {
	bars   []model.Bar
	pos    int
	closed bool
}

func NewSliceSource(bars ...model.Bar) *SliceSource {
	return &SliceSource{bars: bars}
}

func (s *SliceSource) Next(ctx context.Context) (model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return model.Bar{}, err
	}
	if s.closed || s.pos >= len(s.bars) {
		return model.Bar{}, io.EOF
	}
	b := s.bars[s.pos]
	s.pos++
	return b, nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
