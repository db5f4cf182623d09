package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"bktrader/internal/engine"
	"bktrader/internal/model"
	"bktrader/internal/saver"
)

// Recorder is a strategy that buffers bars per code and writes them out as
// packets {dir}/{code}/{code}_{first}_to_{last}.{ext} on Flush.
type Recorder struct {
	saver saver.PacketSaver
	dir   string
	bars  map[uint32][]model.Bar
	codes []uint32
}

// NewRecorder returns a recorder exporting through ps into dir.
func NewRecorder(ps saver.PacketSaver, dir string) *Recorder {
	return &Recorder{saver: ps, dir: dir, bars: make(map[uint32][]model.Bar)}
}

func (r *Recorder) OnBar(bar model.Bar) error {
	if _, ok := r.bars[bar.Code]; !ok {
		r.codes = append(r.codes, bar.Code)
	}
	r.bars[bar.Code] = append(r.bars[bar.Code], bar)
	return nil
}

// Flush writes one packet per code in arrival order and returns the paths written.
func (r *Recorder) Flush() ([]string, error) {
	var paths []string
	for _, code := range r.codes {
		bars := r.bars[code]
		if len(bars) == 0 {
			continue
		}
		c := strconv.FormatUint(uint64(code), 10)
		codeDir := filepath.Join(r.dir, c)
		if err := os.MkdirAll(codeDir, 0755); err != nil {
			return paths, fmt.Errorf("create folder %s: %w", codeDir, err)
		}
		name := fmt.Sprintf("%s_%s_to_%s.%s", c, model.FormatDay(bars[0].Dt), model.FormatDay(bars[len(bars)-1].Dt), r.saver.Extension())
		p := filepath.Join(codeDir, name)
		if err := r.saver.Save(bars, p); err != nil {
			return paths, fmt.Errorf("save %s: %w", p, err)
		}
		slog.Info("packet saved", "code", code, "bars", len(bars), "path", p)
		paths = append(paths, p)
	}
	return paths, nil
}

// CodeSummary is the per-code tally of a run.
type CodeSummary struct {
	Code  uint32
	Bars  int
	First int32
	Last  int32
}

// GroupCounts is a strategy that splits a (code, dt) ordered stream into
// per-code summaries.
type GroupCounts struct {
	groups []CodeSummary
}

func (g *GroupCounts) OnBar(bar model.Bar) error {
	n := len(g.groups)
	if n > 0 && g.groups[n-1].Code == bar.Code {
		g.groups[n-1].Bars++
		g.groups[n-1].Last = bar.Dt
		return nil
	}
	for _, s := range g.groups {
		if s.Code == bar.Code {
			return fmt.Errorf("code %d seen again after %d", bar.Code, g.groups[n-1].Code)
		}
	}
	g.groups = append(g.groups, CodeSummary{Code: bar.Code, Bars: 1, First: bar.Dt, Last: bar.Dt})
	return nil
}

// Summaries returns the tallies in arrival order.
func (g *GroupCounts) Summaries() []CodeSummary { return g.groups }

// Tee fans each bar out to every strategy in order, stopping at the first error.
func Tee(stgs ...engine.Strategy) engine.Strategy {
	return engine.StrategyFunc(func(bar model.Bar) error {
		for _, s := range stgs {
			if err := s.OnBar(bar); err != nil {
				return err
			}
		}
		return nil
	})
}
