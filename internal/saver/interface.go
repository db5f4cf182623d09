// Package saver exports bar packets to files.
package saver

import (
	"fmt"
	"strings"

	"bktrader/internal/model"
)

// PacketSaver writes one packet of bars to path.
// Callers depend on the interface; main picks the implementation by format.
type PacketSaver interface {
	Save(bars []model.Bar, path string) error
	Extension() string
}

// Formats lists the accepted export formats.
var Formats = []string{"csv", "json", "parquet"}

// NewPacketSaver returns the implementation for format (csv, parquet, json).
func NewPacketSaver(format string) (PacketSaver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}
