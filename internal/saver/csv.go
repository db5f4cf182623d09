package saver

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"

	"bktrader/internal/model"
)

var csvHeader = []string{"code", "date", "preclose", "open", "high", "low", "close", "netvalue", "volume", "amount", "trades_count", "turnover"}

// CSVSaver writes one row per bar with the date rendered as 2006-01-02.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(bars []model.Bar, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	w := csv.NewWriter(f)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := w.Write([]string{
			strconv.FormatUint(uint64(b.Code), 10),
			model.FormatDay(b.Dt),
			floatStr(b.Preclose),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			floatStr(b.Netvalue),
			floatStr(b.Volume),
			floatStr(b.Amount),
			strconv.FormatInt(b.TradesCount, 10),
			floatStr(b.Turnover),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
