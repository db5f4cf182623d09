package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bktrader/internal/model"
	"bktrader/internal/quote"
	"bktrader/internal/replay"
)

type recorder struct {
	dts    []int32
	failAt int32
}

func (r *recorder) OnBar(bar model.Bar) error {
	if r.failAt != 0 && bar.Dt == r.failAt {
		return errors.New("strategy blew up")
	}
	r.dts = append(r.dts, bar.Dt)
	return nil
}

type quoter struct {
	bar model.Bar
	err error
}

func (q quoter) GetQuote(context.Context, uint32) (model.Bar, error) { return q.bar, q.err }

type closeCounter struct {
	*replay.SliceSource
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return c.SliceSource.Close()
}

func history() *closeCounter {
	return &closeCounter{SliceSource: replay.NewSliceSource(
		model.Bar{Code: 510050, Dt: 100},
		model.Bar{Code: 510050, Dt: 101},
		model.Bar{Code: 510050, Dt: 102},
	)}
}

func newEngine() *Engine {
	e := New(nil)
	e.newID = func() string { return "run-1" }
	return e
}

func TestRun(t *testing.T) {
	src := history()
	stg := &recorder{}
	sum, err := newEngine().Run(context.Background(), src, stg)
	require.NoError(t, err)
	assert.Equal(t, []int32{100, 101, 102}, stg.dts)
	assert.Equal(t, Summary{RunID: "run-1", Bars: 3, First: 100, Last: 102}, sum)
	assert.Equal(t, 1, src.closes)
}

func TestRunLiveAppendsOneBar(t *testing.T) {
	stg := &recorder{}
	sum, err := newEngine().RunLive(context.Background(), history(), quoter{bar: model.Bar{Code: 510050, Dt: 103}}, 510050, stg)
	require.NoError(t, err)
	assert.Equal(t, []int32{100, 101, 102, 103}, stg.dts)
	assert.True(t, sum.Live)
	assert.Equal(t, 4, sum.Bars)
}

func TestRunLiveSkipsPreOpen(t *testing.T) {
	stg := &recorder{}
	err := fmt.Errorf("code 510050: %w", quote.ErrPreOpen)
	sum, runErr := newEngine().RunLive(context.Background(), history(), quoter{err: err}, 510050, stg)
	require.NoError(t, runErr)
	assert.Equal(t, []int32{100, 101, 102}, stg.dts)
	assert.False(t, sum.Live)
}

func TestRunLiveSkipsStaleBar(t *testing.T) {
	stg := &recorder{}
	sum, err := newEngine().RunLive(context.Background(), history(), quoter{bar: model.Bar{Dt: 102}}, 510050, stg)
	require.NoError(t, err)
	assert.Len(t, stg.dts, 3)
	assert.False(t, sum.Live)
}

func TestRunLiveQuoteErrorIsFatal(t *testing.T) {
	boom := errors.New("feed down")
	_, err := newEngine().RunLive(context.Background(), history(), quoter{err: boom}, 510050, &recorder{})
	assert.ErrorIs(t, err, boom)
}

func TestStrategyErrorAbortsAndCloses(t *testing.T) {
	src := history()
	stg := &recorder{failAt: 101}
	sum, err := newEngine().Run(context.Background(), src, stg)
	require.ErrorContains(t, err, "strategy blew up")
	assert.Equal(t, []int32{100}, stg.dts)
	assert.Equal(t, 1, sum.Bars)
	assert.Equal(t, 1, src.closes)
}

func TestStrategyErrorOnLiveBar(t *testing.T) {
	stg := &recorder{failAt: 103}
	_, err := newEngine().RunLive(context.Background(), history(), quoter{bar: model.Bar{Dt: 103}}, 510050, stg)
	assert.ErrorContains(t, err, "live bar")
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := history()
	_, err := newEngine().Run(ctx, src, &recorder{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.closes)
}

func TestStrategyFunc(t *testing.T) {
	var n int
	_, err := newEngine().Run(context.Background(), history(), StrategyFunc(func(model.Bar) error {
		n++
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
