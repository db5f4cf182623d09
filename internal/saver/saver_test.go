package saver

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bktrader/internal/model"
)

var bars = []model.Bar{
	{Code: 510050, Dt: 20062, Preclose: 4.0, Open: 4.02, High: 4.1, Low: 3.98, Close: 4.04, Volume: 4000, Amount: 16160},
	{Code: 510050, Dt: 20063, Preclose: 4.04, Open: 4.05, High: 4.06, Low: 4.0, Close: 4.01, Volume: 3000, Amount: 12030, TradesCount: 12},
}

func TestNewPacketSaver(t *testing.T) {
	for _, f := range []string{"csv", " JSON ", "parquet"} {
		s, err := NewPacketSaver(f)
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
	_, err := NewPacketSaver("xlsx")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestCSVSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, CSVSaver{}.Save(bars, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"510050", "2024-12-06", "4.04", "4.05", "4.06", "4", "4.01", "0", "3000", "12030", "12", "0"}, rows[2])
}

func TestJSONSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.json")
	require.NoError(t, JSONSaver{}.Save(bars, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []model.Bar
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, bars, got)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, JSONSaver{}.Save(nil, empty))
	data, err = os.ReadFile(empty)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestParquetSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	require.NoError(t, ParquetSaver{}.Save(bars, path))

	got, err := parquet.ReadFile[model.Bar](path)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}

func TestSaveToMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "bars.csv")
	assert.Error(t, CSVSaver{}.Save(bars, path))
}
