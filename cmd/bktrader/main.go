package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"bktrader/internal/slogx"
)

func init() {
	slog.SetDefault(slogx.NewDefault("info"))
}

func main() {
	// Components capture slog.Default() when wired, so the level must be set first.
	_ = godotenv.Load()
	slog.SetDefault(slogx.NewDefault(os.Getenv("LOG_LEVEL")))

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&backtestCmd{}, "replay")
	subcommands.Register(&batchCmd{}, "replay")
	subcommands.Register(&liveCmd{}, "live")
	subcommands.Register(&quoteCmd{}, "live")

	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}
