package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bktrader/internal/engine"
	"bktrader/internal/model"
	"bktrader/internal/quote"
	"bktrader/internal/saver"
	"bktrader/internal/session"
	"bktrader/internal/store"
	"bktrader/internal/store/parquetstore"
)

func ptr[T any](v T) *T { return &v }

func day(d int) time.Time { return time.Date(2024, 12, d, 0, 0, 0, 0, session.China) }

// fixture stores 510050 for 2024-12-02..05 and 159915 for 12-02..03.
func fixture(t *testing.T) store.Store {
	t.Helper()
	var rows []store.Row
	closes := []float64{1.97, 1.98, 1.99, 2.0}
	for i, c := range closes {
		rows = append(rows, store.Row{
			Code: 510050, Dt: model.DayIndex(day(2 + i)), Preclose: ptr(c - 0.01),
			Open: c, High: c, Low: c, Close: c, Volume: 1000, Amount: 1000 * c, AdjFactor: 20000,
		})
	}
	for i := range 2 {
		rows = append(rows, store.Row{
			Code: 159915, Dt: model.DayIndex(day(2 + i)), Preclose: ptr(1.5),
			Open: 1.5, High: 1.5, Low: 1.5, Close: 1.5, Volume: 10, Amount: 15, AdjFactor: 10000,
		})
	}
	path := filepath.Join(t.TempDir(), "bar1d.parquet")
	require.NoError(t, parquetstore.WriteFile(path, rows))
	return parquetstore.New(path)
}

func feedServer(t *testing.T, updated time.Time) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"diff": []any{
			map[string]any{
				"f12": "510050", "f297": 20241206, "f18": 2.0, "f17": 2.01, "f15": 2.05, "f16": 1.99,
				"f2": 2.02, "f5": 10, "f6": 2020.0, "f124": updated.Unix(), "f441": "-",
			},
			map[string]any{
				"f12": "588000", "f297": 20241206, "f18": 1.0, "f17": 1.0, "f15": 1.0, "f16": 1.0,
				"f2": 1.0, "f5": 10, "f6": 10.0, "f124": updated.Unix(),
			},
		}}}))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deps(t *testing.T, feedURL string) Deps {
	t.Helper()
	st := fixture(t)
	feed := quote.DefaultFeedConfig()
	feed.URL = feedURL
	feed.RatePerSecond = 0
	src, err := ProvideQuoteSource(feed, session.Default(), ProvideReconciler(st))
	require.NoError(t, err)
	return Deps{
		Store:     st,
		Engine:    ProvideEngine(),
		Quotes:    src,
		Estimator: session.Default(),
		ExportDir: t.TempDir(),
	}
}

type dts []int32

func (d *dts) OnBar(bar model.Bar) error {
	*d = append(*d, bar.Dt)
	return nil
}

func TestRunBacktestExports(t *testing.T) {
	d := deps(t, "http://unused.invalid")
	d.Saver = saver.JSONSaver{}
	var got dts
	sum, err := RunBacktest(context.Background(), d, 510050, day(3), day(5), &got)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Bars)
	assert.Len(t, got, 3)

	data, err := os.ReadFile(filepath.Join(d.ExportDir, "510050", "510050_2024-12-03_to_2024-12-05.json"))
	require.NoError(t, err)
	var bars []model.Bar
	require.NoError(t, json.Unmarshal(data, &bars))
	require.Len(t, bars, 3)
	assert.Equal(t, 4.0, bars[2].Close)
}

func TestRunBatchGroupsPerCode(t *testing.T) {
	d := deps(t, "http://unused.invalid")
	groups, err := RunBatch(context.Background(), d, []uint32{510050, 159915, 513500}, day(1), day(5), LogStrategy(slog.Default()))
	require.NoError(t, err)
	assert.Equal(t, []CodeSummary{
		{Code: 159915, Bars: 2, First: model.DayIndex(day(2)), Last: model.DayIndex(day(3))},
		{Code: 510050, Bars: 4, First: model.DayIndex(day(2)), Last: model.DayIndex(day(5))},
	}, groups)
}

func TestRunLiveAppendsReconciledBar(t *testing.T) {
	now := time.Date(2024, 12, 6, 10, 30, 0, 0, session.China)
	d := deps(t, feedServer(t, now).URL)
	var got []model.Bar
	stg := engine.StrategyFunc(func(bar model.Bar) error {
		got = append(got, bar)
		return nil
	})

	sum, err := RunLive(context.Background(), d, 510050, day(2), now, stg)
	require.NoError(t, err)
	assert.True(t, sum.Live)
	require.Len(t, got, 5)
	live := got[4]
	assert.Equal(t, model.DayIndex(day(6)), live.Dt)
	assert.Equal(t, got[3].Close, live.Preclose)
	assert.Equal(t, 4.04, live.Close)
	assert.Equal(t, 4000.0, live.Volume) // 10 lots, a quarter of the day
}

func TestRunLivePreOpen(t *testing.T) {
	now := time.Date(2024, 12, 6, 9, 0, 0, 0, session.China)
	d := deps(t, feedServer(t, now).URL)
	var got dts
	sum, err := RunLive(context.Background(), d, 510050, day(2), now, &got)
	require.NoError(t, err)
	assert.False(t, sum.Live)
	assert.Len(t, got, 4)
}

func TestRunQuoteSkipsUnknownCodes(t *testing.T) {
	now := time.Date(2024, 12, 6, 14, 0, 0, 0, session.China)
	d := deps(t, feedServer(t, now).URL)
	var buf bytes.Buffer
	n, err := RunQuote(context.Background(), d, nil, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "588000 has no stored history")

	var bar model.Bar
	require.NoError(t, json.Unmarshal(buf.Bytes(), &bar))
	assert.Equal(t, uint32(510050), bar.Code)
	assert.Equal(t, 4.0, bar.Preclose)
}

func TestRunBatchWritesReport(t *testing.T) {
	d := deps(t, "http://unused.invalid")
	_, err := RunBatch(context.Background(), d, []uint32{510050, 513500}, day(1), day(5), LogStrategy(slog.Default()))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(d.ExportDir, ".lastrun.missing.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[513500]`, string(data))

	data, err = os.ReadFile(filepath.Join(d.ExportDir, ".lastrun.replayed.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"code":510050,"bars":4,"first":"2024-12-02","last":"2024-12-05"}]`, string(data))
}
