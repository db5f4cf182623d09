package app

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"bktrader/internal/model"
)

type reportEntry struct {
	Code  uint32 `json:"code"`
	Bars  int    `json:"bars"`
	First string `json:"first"`
	Last  string `json:"last"`
}

// writeRunReport records the outcome of a batch run in dir:
// .lastrun.replayed.json for codes with bars and .lastrun.missing.json for the rest.
func writeRunReport(dir string, groups []CodeSummary, missing []uint32) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if len(groups) > 0 {
		entries := make([]reportEntry, len(groups))
		for i, g := range groups {
			entries[i] = reportEntry{Code: g.Code, Bars: g.Bars, First: model.FormatDay(g.First), Last: model.FormatDay(g.Last)}
		}
		p := filepath.Join(dir, ".lastrun.replayed.json")
		if err := writeJSON(p, entries); err != nil {
			return err
		}
		slog.Info("report wrote replayed", "path", p, "codes", len(entries))
	}
	if len(missing) > 0 {
		p := filepath.Join(dir, ".lastrun.missing.json")
		if err := writeJSON(p, missing); err != nil {
			return err
		}
		slog.Info("report wrote missing", "path", p, "count", len(missing))
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
