package saver

import (
	"github.com/parquet-go/parquet-go"

	"bktrader/internal/model"
)

// ParquetSaver writes the packet as a Parquet file with the bar schema.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(bars []model.Bar, path string) error {
	return parquet.WriteFile(path, bars)
}
