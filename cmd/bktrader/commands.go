package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"bktrader/internal/app"
	"bktrader/internal/model"
)

const dateLayout = "2006-01-02"

func deps(a *App) app.Deps {
	return app.Deps{
		Store:     a.Store,
		Engine:    a.Engine,
		Quotes:    a.Quotes,
		Estimator: a.Estimator,
		Saver:     a.Saver,
		ExportDir: a.Config.ExportDir,
	}
}

// initialize wires the app and logs the failure the way every command reports it.
func initialize() (*App, subcommands.ExitStatus) {
	a, err := InitializeApp()
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return nil, subcommands.ExitFailure
	}
	slog.Info("using store", "store", a.Store.Name(), "export", a.Config.ExportFormat)
	return a, subcommands.ExitSuccess
}

func fail(msg string, err error) subcommands.ExitStatus {
	if errors.Is(err, context.Canceled) {
		slog.Info("interrupted", "error", err)
	} else {
		slog.Error(msg, "error", err)
	}
	return subcommands.ExitFailure
}

type dateRange struct {
	start, end string
}

func (r *dateRange) register(f *flag.FlagSet, withEnd bool) {
	f.StringVar(&r.start, "start", "", "first date, "+dateLayout)
	if withEnd {
		f.StringVar(&r.end, "end", "", "last date, "+dateLayout+" (default: yesterday)")
	}
}

func (r *dateRange) parse(loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.Local
	}
	if r.start == "" {
		return start, end, errors.New("-start is required")
	}
	if start, err = time.ParseInLocation(dateLayout, r.start, loc); err != nil {
		return start, end, fmt.Errorf("-start: %w", err)
	}
	if r.end == "" {
		end = time.Now().In(loc).AddDate(0, 0, -1)
	} else if end, err = time.ParseInLocation(dateLayout, r.end, loc); err != nil {
		return start, end, fmt.Errorf("-end: %w", err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("-end %s is before -start %s", end.Format(dateLayout), r.start)
	}
	return start, end, nil
}

func parseCodes(s string) ([]uint32, error) {
	var codes []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid code %q", part)
		}
		codes = append(codes, uint32(v))
	}
	return codes, nil
}

type backtestCmd struct {
	code  uint
	dates dateRange
}

func (*backtestCmd) Name() string     { return "backtest" }
func (*backtestCmd) Synopsis() string { return "replay one code from the bar store" }
func (*backtestCmd) Usage() string {
	return "backtest -code 510050 -start 2024-01-01 [-end 2024-11-30]\n"
}

func (c *backtestCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.code, "code", 0, "instrument code")
	c.dates.register(f, true)
}

func (c *backtestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.code == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := initialize()
	if a == nil {
		return status
	}
	start, end, err := c.dates.parse(a.Estimator.Location)
	if err != nil {
		return fail("invalid flags", err)
	}
	sum, err := app.RunBacktest(ctx, deps(a), uint32(c.code), start, end, app.LogStrategy(slog.Default()))
	if err != nil {
		return fail("backtest failed", err)
	}
	fmt.Printf("%d bars replayed (run %s)\n", sum.Bars, sum.RunID)
	return subcommands.ExitSuccess
}

type batchCmd struct {
	codes     string
	codesFile string
	dates     dateRange
}

func (*batchCmd) Name() string     { return "batch" }
func (*batchCmd) Synopsis() string { return "replay many codes with a single store query" }
func (*batchCmd) Usage() string {
	return "batch -codes 510050,159915 | -codes-file etf.txt -start 2024-01-01 [-end 2024-11-30]\n"
}

func (c *batchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.codes, "codes", "", "comma separated instrument codes")
	f.StringVar(&c.codesFile, "codes-file", "", "file listing codes (.txt or .json)")
	c.dates.register(f, true)
}

func (c *batchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	codes, err := parseCodes(c.codes)
	if err == nil && c.codesFile != "" {
		var more []uint32
		more, err = app.LoadCodesFromFile(c.codesFile)
		codes = append(codes, more...)
	}
	if err != nil {
		return fail("invalid flags", err)
	}
	if len(codes) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := initialize()
	if a == nil {
		return status
	}
	start, end, err := c.dates.parse(a.Estimator.Location)
	if err != nil {
		return fail("invalid flags", err)
	}
	groups, err := app.RunBatch(ctx, deps(a), codes, start, end, app.LogStrategy(slog.Default()))
	if err != nil {
		return fail("batch failed", err)
	}
	for _, g := range groups {
		fmt.Printf("%d\t%d bars\t%s..%s\n", g.Code, g.Bars, model.FormatDay(g.First), model.FormatDay(g.Last))
	}
	return subcommands.ExitSuccess
}

type liveCmd struct {
	code  uint
	dates dateRange
}

func (*liveCmd) Name() string { return "live" }
func (*liveCmd) Synopsis() string {
	return "replay history through yesterday, then today's reconciled quote"
}
func (*liveCmd) Usage() string { return "live -code 510050 -start 2024-01-01\n" }

func (c *liveCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.code, "code", 0, "instrument code")
	c.dates.register(f, false)
}

func (c *liveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.code == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := initialize()
	if a == nil {
		return status
	}
	start, _, err := c.dates.parse(a.Estimator.Location)
	if err != nil {
		return fail("invalid flags", err)
	}
	sum, err := app.RunLive(ctx, deps(a), uint32(c.code), start, time.Now(), app.LogStrategy(slog.Default()))
	if err != nil {
		return fail("live run failed", err)
	}
	fmt.Printf("%d bars replayed, live bar delivered: %t (run %s)\n", sum.Bars, sum.Live, sum.RunID)
	return subcommands.ExitSuccess
}

type quoteCmd struct {
	codes string
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "print reconciled live bars as JSON lines" }
func (*quoteCmd) Usage() string    { return "quote [-codes 510050,159915]\n" }

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.codes, "codes", "", "comma separated instrument codes (default: whole snapshot)")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	codes, err := parseCodes(c.codes)
	if err != nil {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, status := initialize()
	if a == nil {
		return status
	}
	n, err := app.RunQuote(ctx, deps(a), codes, os.Stdout)
	if err != nil {
		return fail("quote failed", err)
	}
	slog.Info("quotes written", "count", n)
	return subcommands.ExitSuccess
}
